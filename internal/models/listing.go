package models

import "time"

// Multipart field names of the three listing photos.
const (
	PhotoExterior    = "fotoKost"
	PhotoOutsideRoom = "fotoLuarKamar"
	PhotoInsideRoom  = "fotoDalamKamar"
)

// PhotoFields lists the photo fields in column order.
var PhotoFields = []string{PhotoExterior, PhotoOutsideRoom, PhotoInsideRoom}

// ListingFields holds everything a client may create or replace.
type ListingFields struct {
	Name             string     `json:"namaKost" validate:"max=255"`
	Size             string     `json:"ukuranKost" validate:"max=100"`
	TotalRooms       Text       `json:"jumlahTotalKamar" validate:"max=20"`
	AvailableRooms   Text       `json:"jumlahKamarTersedia" validate:"max=20"`
	PriceMonthly     Text       `json:"hargaPerBulan" validate:"max=32"`
	Price3Months     Text       `json:"hargaPer3Bulan" validate:"max=32"`
	Price6Months     Text       `json:"hargaPer6Bulan" validate:"max=32"`
	Price12Months    Text       `json:"hargaPer12Bulan" validate:"max=32"`
	Address          string     `json:"alamat" validate:"max=500"`
	City             string     `json:"kota" validate:"max=100"`
	Province         string     `json:"provinsi" validate:"max=100"`
	RoomFacilities   StringList `json:"fasilitasKamar" validate:"max=100,dive,max=255"`
	SharedFacilities StringList `json:"fasilitasBersama" validate:"max=100,dive,max=255"`
	Rules            StringList `json:"peraturan" validate:"max=100,dive,max=255"`
}

// ImageRefs are generated upload filenames; nil means no photo was sent.
type ImageRefs struct {
	Exterior    *string `json:"fotoKost"`
	OutsideRoom *string `json:"fotoLuarKamar"`
	InsideRoom  *string `json:"fotoDalamKamar"`
}

// Set stores name under the given photo field. Unknown fields are ignored.
func (r *ImageRefs) Set(field, name string) {
	switch field {
	case PhotoExterior:
		r.Exterior = &name
	case PhotoOutsideRoom:
		r.OutsideRoom = &name
	case PhotoInsideRoom:
		r.InsideRoom = &name
	}
}

// Names returns the filenames that are present.
func (r ImageRefs) Names() []string {
	var names []string
	for _, p := range []*string{r.Exterior, r.OutsideRoom, r.InsideRoom} {
		if p != nil && *p != "" {
			names = append(names, *p)
		}
	}
	return names
}

type Listing struct {
	ID int64 `json:"id"`
	ListingFields
	ImageRefs
}

// ListingEvent is pushed to feed subscribers after a successful write.
type ListingEvent struct {
	Type      string    `json:"type"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventListingCreated = "created"
	EventListingUpdated = "updated"
	EventListingDeleted = "deleted"
)
