// Package codec converts list-valued listing fields to and from the JSON text
// stored in the products table.
package codec

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"kostBack/internal/models"
)

// EncodeList serialises a list for storage. A nil list is stored as "[]".
func EncodeList(list []string) (string, error) {
	if list == nil {
		return "[]", nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

// DecodeList reads a stored list. NULL, empty text and a literal "null"
// decode to an empty list; anything else must be a JSON array of strings.
func DecodeList(raw sql.NullString) (models.StringList, error) {
	if !raw.Valid {
		return models.StringList{}, nil
	}
	text := strings.TrimSpace(raw.String)
	if text == "" || text == "null" {
		return models.StringList{}, nil
	}

	var list []string
	if err := json.Unmarshal([]byte(text), &list); err != nil {
		return models.StringList{}, fmt.Errorf("%w: %v", models.ErrMalformedList, err)
	}
	if list == nil {
		list = []string{}
	}
	return list, nil
}

// EncodedLists is the storage form of the three list fields, in column order.
type EncodedLists struct {
	RoomFacilities   string
	SharedFacilities string
	Rules            string
}

func EncodeFields(f models.ListingFields) (EncodedLists, error) {
	var (
		out EncodedLists
		err error
	)
	if out.RoomFacilities, err = EncodeList(f.RoomFacilities); err != nil {
		return EncodedLists{}, err
	}
	if out.SharedFacilities, err = EncodeList(f.SharedFacilities); err != nil {
		return EncodedLists{}, err
	}
	if out.Rules, err = EncodeList(f.Rules); err != nil {
		return EncodedLists{}, err
	}
	return out, nil
}
