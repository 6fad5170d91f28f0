package codec

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kostBack/internal/models"
)

func TestListRoundTrip(t *testing.T) {
	cases := map[string][]string{
		"unset":       nil,
		"empty":       {},
		"single":      {"AC"},
		"ordered":     {"Kasur", "AC", "Lemari", "AC"},
		"punctuation": {`Kamar "mandi" dalam`, "Wi-Fi, 24 jam", "日本"},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			encoded, err := EncodeList(in)
			require.NoError(t, err)

			out, err := DecodeList(sql.NullString{String: encoded, Valid: true})
			require.NoError(t, err)

			want := in
			if want == nil {
				want = []string{}
			}
			assert.Equal(t, models.StringList(want), out)
		})
	}
}

func TestEncodeListNil(t *testing.T) {
	encoded, err := EncodeList(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", encoded)
}

func TestDecodeListMissing(t *testing.T) {
	for _, raw := range []sql.NullString{
		{},
		{String: "", Valid: true},
		{String: "null", Valid: true},
		{String: "  ", Valid: true},
	} {
		out, err := DecodeList(raw)
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	}
}

func TestDecodeListMalformed(t *testing.T) {
	for _, raw := range []string{"[AC", "AC,Kasur", `{"a":1}`, "[1,2]"} {
		_, err := DecodeList(sql.NullString{String: raw, Valid: true})
		assert.ErrorIs(t, err, models.ErrMalformedList, raw)
	}
}

func TestEncodeFields(t *testing.T) {
	out, err := EncodeFields(models.ListingFields{
		RoomFacilities: models.StringList{"AC", "Kasur"},
		Rules:          models.StringList{},
	})
	require.NoError(t, err)
	assert.Equal(t, `["AC","Kasur"]`, out.RoomFacilities)
	assert.Equal(t, "[]", out.SharedFacilities)
	assert.Equal(t, "[]", out.Rules)
}
