package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kostBack/internal/codec"
	"kostBack/internal/models"
)

const listingColumns = `id, namaKost, ukuranKost, jumlahTotalKamar, jumlahKamarTersedia,
    hargaPerBulan, hargaPer3Bulan, hargaPer6Bulan, hargaPer12Bulan,
    alamat, kota, provinsi, fasilitasKamar, fasilitasBersama, peraturan,
    fotoKost, fotoLuarKamar, fotoDalamKamar`

type ListingRepository struct {
	DB      *sql.DB
	Dialect Dialect
	// OnDecodeError receives list columns that could not be decoded; the
	// listing is still returned with that list emptied.
	OnDecodeError func(id int64, column string, err error)
}

func NewListingRepository(db *sql.DB, dialect Dialect) *ListingRepository {
	return &ListingRepository{DB: db, Dialect: dialect}
}

func (r *ListingRepository) Create(ctx context.Context, f models.ListingFields, refs models.ImageRefs) (int64, error) {
	query := `
    INSERT INTO products (namaKost, ukuranKost, jumlahTotalKamar, jumlahKamarTersedia, hargaPerBulan, hargaPer3Bulan, hargaPer6Bulan, hargaPer12Bulan,
        alamat, kota, provinsi, fasilitasKamar, fasilitasBersama, peraturan, fotoKost, fotoLuarKamar, fotoDalamKamar)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	lists, err := codec.EncodeFields(f)
	if err != nil {
		return 0, err
	}

	args := append(scalarArgs(f), lists.RoomFacilities, lists.SharedFacilities, lists.Rules,
		nullable(refs.Exterior), nullable(refs.OutsideRoom), nullable(refs.InsideRoom))

	if r.Dialect == DialectPostgres {
		var id int64
		err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query+" RETURNING id"), args...).Scan(&id)
		if err != nil {
			return 0, err
		}
		return id, nil
	}

	result, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (r *ListingRepository) GetAll(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM products ORDER BY id`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := r.scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id int64) (models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM products WHERE id = ?`

	l, err := r.scanListing(r.DB.QueryRowContext(ctx, r.Dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Listing{}, models.ErrListingNotFound
	}
	if err != nil {
		return models.Listing{}, err
	}
	return l, nil
}

// Update replaces every scalar and list field. Photos are left untouched.
func (r *ListingRepository) Update(ctx context.Context, id int64, f models.ListingFields) error {
	query := `
UPDATE products
SET namaKost = ?, ukuranKost = ?, jumlahTotalKamar = ?, jumlahKamarTersedia = ?, hargaPerBulan = ?, hargaPer3Bulan = ?, hargaPer6Bulan = ?, hargaPer12Bulan = ?,
    alamat = ?, kota = ?, provinsi = ?, fasilitasKamar = ?, fasilitasBersama = ?, peraturan = ?
WHERE id = ?`

	lists, err := codec.EncodeFields(f)
	if err != nil {
		return err
	}
	args := append(scalarArgs(f), lists.RoomFacilities, lists.SharedFacilities, lists.Rules, id)

	result, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *ListingRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

// ImageNames returns every photo filename referenced by a listing.
func (r *ListingRepository) ImageNames(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT fotoKost, fotoLuarKamar, fotoDalamKamar FROM products`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var a, b, c sql.NullString
		if err := rows.Scan(&a, &b, &c); err != nil {
			return nil, err
		}
		for _, n := range []sql.NullString{a, b, c} {
			if n.Valid && n.String != "" {
				names[n.String] = struct{}{}
			}
		}
	}
	return names, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ListingRepository) scanListing(row rowScanner) (models.Listing, error) {
	var l models.Listing
	var name, size, total, avail, p1, p3, p6, p12 sql.NullString
	var address, city, province, roomFac, sharedFac, rules sql.NullString
	var exterior, outside, inside sql.NullString
	err := row.Scan(&l.ID, &name, &size, &total, &avail, &p1, &p3, &p6, &p12,
		&address, &city, &province, &roomFac, &sharedFac, &rules,
		&exterior, &outside, &inside)
	if err != nil {
		return models.Listing{}, err
	}

	l.Name = name.String
	l.Size = size.String
	l.TotalRooms = models.Text(total.String)
	l.AvailableRooms = models.Text(avail.String)
	l.PriceMonthly = models.Text(p1.String)
	l.Price3Months = models.Text(p3.String)
	l.Price6Months = models.Text(p6.String)
	l.Price12Months = models.Text(p12.String)
	l.Address = address.String
	l.City = city.String
	l.Province = province.String

	l.RoomFacilities = r.decode(l.ID, "fasilitasKamar", roomFac)
	l.SharedFacilities = r.decode(l.ID, "fasilitasBersama", sharedFac)
	l.Rules = r.decode(l.ID, "peraturan", rules)

	l.Exterior = stringPtr(exterior)
	l.OutsideRoom = stringPtr(outside)
	l.InsideRoom = stringPtr(inside)
	return l, nil
}

func (r *ListingRepository) decode(id int64, column string, raw sql.NullString) models.StringList {
	list, err := codec.DecodeList(raw)
	if err != nil {
		if r.OnDecodeError != nil {
			r.OnDecodeError(id, column, err)
		}
		return models.StringList{}
	}
	return list
}

func scalarArgs(f models.ListingFields) []any {
	return []any{
		f.Name, f.Size, string(f.TotalRooms), string(f.AvailableRooms),
		string(f.PriceMonthly), string(f.Price3Months), string(f.Price6Months), string(f.Price12Months),
		f.Address, f.City, f.Province,
	}
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return models.ErrListingNotFound
	}
	return nil
}
