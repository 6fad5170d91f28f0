package handlers

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"
	"strings"

	"kostBack/internal/models"
)

// gatherStringsFromForm collects string values stored under any of keys.
// A value may be a plain token or a JSON array. A whole value of "",
// "null" or "undefined" is unset; array elements are kept as sent.
// ok reports whether anything was collected.
func gatherStringsFromForm(form *multipart.Form, keys ...string) ([]string, bool, error) {
	if form == nil {
		return nil, false, nil
	}
	return gatherStrings(form.Value, keys...)
}

func gatherStrings(values url.Values, keys ...string) ([]string, bool, error) {
	var result []string
	for _, key := range keys {
		for _, raw := range values[key] {
			trimmed := strings.TrimSpace(raw)
			if isBlankToken(trimmed) {
				continue
			}

			if strings.HasPrefix(trimmed, "[") {
				var arr []string
				if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
					return nil, false, fmt.Errorf("%s: %w", key, models.ErrMalformedList)
				}
				result = append(result, arr...)
				continue
			}

			result = append(result, raw)
		}
	}
	return result, len(result) > 0, nil
}

func isBlankToken(s string) bool {
	return s == "" || s == "null" || s == "undefined"
}

// listingFieldsFromForm reads scalar and list fields from submitted form values.
func listingFieldsFromForm(values url.Values) (models.ListingFields, error) {
	f := models.ListingFields{
		Name:           values.Get("namaKost"),
		Size:           values.Get("ukuranKost"),
		TotalRooms:     models.Text(values.Get("jumlahTotalKamar")),
		AvailableRooms: models.Text(values.Get("jumlahKamarTersedia")),
		PriceMonthly:   models.Text(values.Get("hargaPerBulan")),
		Price3Months:   models.Text(values.Get("hargaPer3Bulan")),
		Price6Months:   models.Text(values.Get("hargaPer6Bulan")),
		Price12Months:  models.Text(values.Get("hargaPer12Bulan")),
		Address:        values.Get("alamat"),
		City:           values.Get("kota"),
		Province:       values.Get("provinsi"),
	}

	lists := []struct {
		key string
		dst *models.StringList
	}{
		{"fasilitasKamar", &f.RoomFacilities},
		{"fasilitasBersama", &f.SharedFacilities},
		{"peraturan", &f.Rules},
	}
	for _, l := range lists {
		vals, _, err := gatherStrings(values, l.key, l.key+"[]")
		if err != nil {
			return models.ListingFields{}, err
		}
		*l.dst = vals
	}
	return f, nil
}
