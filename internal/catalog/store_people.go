package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const personColumns = "id, name, also_known_as, biography, biography_source, birthday, deathday, place_of_birth, known_for, profile_path, popularity, imdb_id, wikidata_id, image_count, credit_count, enriched_at, created_at, updated_at"

var upsertPersonSQL = `INSERT INTO people (` + personColumns + `)
VALUES (` + makePlaceholders(18) + `)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    also_known_as = excluded.also_known_as,
    biography = excluded.biography,
    biography_source = excluded.biography_source,
    birthday = excluded.birthday,
    deathday = excluded.deathday,
    place_of_birth = excluded.place_of_birth,
    known_for = excluded.known_for,
    profile_path = excluded.profile_path,
    popularity = excluded.popularity,
    imdb_id = excluded.imdb_id,
    wikidata_id = excluded.wikidata_id,
    image_count = excluded.image_count,
    credit_count = excluded.credit_count,
    enriched_at = excluded.enriched_at,
    updated_at = excluded.updated_at`

func personArgs(person *Person) []any {
	return []any{
		person.ID,
		nullableString(person.Name),
		marshalStrings(person.AlsoKnownAs),
		nullableString(person.Biography),
		nullableString(person.BiographySource),
		nullableString(person.Birthday),
		nullableString(person.Deathday),
		nullableString(person.PlaceOfBirth),
		nullableString(person.KnownFor),
		nullableString(person.ProfilePath),
		person.Popularity,
		nullableString(person.IMDBID),
		nullableString(person.WikidataID),
		person.ImageCount,
		person.CreditCount,
		nullableTime(person.EnrichedAt),
		person.CreatedAt.UTC().Format(time.RFC3339Nano),
		person.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func scanPerson(scanner interface{ Scan(dest ...any) error }) (*Person, error) {
	var (
		id              int64
		name            sql.NullString
		alsoKnownAs     sql.NullString
		biography       sql.NullString
		biographySource sql.NullString
		birthday        sql.NullString
		deathday        sql.NullString
		placeOfBirth    sql.NullString
		knownFor        sql.NullString
		profilePath     sql.NullString
		popularity      sql.NullFloat64
		imdbID          sql.NullString
		wikidataID      sql.NullString
		imageCount      sql.NullInt64
		creditCount     sql.NullInt64
		enrichedRaw     sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&alsoKnownAs,
		&biography,
		&biographySource,
		&birthday,
		&deathday,
		&placeOfBirth,
		&knownFor,
		&profilePath,
		&popularity,
		&imdbID,
		&wikidataID,
		&imageCount,
		&creditCount,
		&enrichedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	person := &Person{
		ID:              id,
		Name:            name.String,
		AlsoKnownAs:     unmarshalStrings(alsoKnownAs),
		Biography:       biography.String,
		BiographySource: biographySource.String,
		Birthday:        birthday.String,
		Deathday:        deathday.String,
		PlaceOfBirth:    placeOfBirth.String,
		KnownFor:        knownFor.String,
		ProfilePath:     profilePath.String,
		Popularity:      popularity.Float64,
		IMDBID:          imdbID.String,
		WikidataID:      wikidataID.String,
		ImageCount:      int(imageCount.Int64),
		CreditCount:     int(creditCount.Int64),
	}
	if enrichedRaw.Valid {
		if enriched, err := parseTimeString(enrichedRaw.String); err == nil {
			person.EnrichedAt = &enriched
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		person.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		person.UpdatedAt = updated
	}
	return person, nil
}

// UpsertPerson writes one full person record, preserving created_at for
// existing rows.
func (s *Store) UpsertPerson(ctx context.Context, person *Person) error {
	if person == nil {
		return errors.New("person is nil")
	}
	now := time.Now().UTC()
	person.UpdatedAt = now
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	if err := s.execWithoutResultRetry(ctx, upsertPersonSQL, personArgs(person)...); err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}
	return nil
}

// UpsertPersonBatch writes people in one transaction and returns how many
// were written.
func (s *Store) UpsertPersonBatch(ctx context.Context, people []*Person) (int, error) {
	if len(people) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin people tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	written := 0
	for _, person := range people {
		if person == nil {
			continue
		}
		person.UpdatedAt = now
		if person.CreatedAt.IsZero() {
			person.CreatedAt = now
		}
		if _, err := tx.ExecContext(ctx, upsertPersonSQL, personArgs(person)...); err != nil {
			return written, fmt.Errorf("upsert person %d: %w", person.ID, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return written, fmt.Errorf("commit people batch: %w", err)
	}
	return written, nil
}

// SeedPeople inserts minimal person stubs for ids not yet in the table and
// returns how many were new. Existing rows are left untouched: a stub must
// never shadow a fully enriched record.
func (s *Store) SeedPeople(ctx context.Context, people []*Person) (int, error) {
	if len(people) == 0 {
		return 0, nil
	}
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin people tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	seeded := 0
	for _, person := range people {
		if person == nil || person.ID <= 0 {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO people (id, name, profile_path, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			person.ID, nullableString(person.Name), nullableString(person.ProfilePath), now, now)
		if err != nil {
			return seeded, fmt.Errorf("seed person %d: %w", person.ID, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			seeded += int(affected)
		}
	}

	if err := tx.Commit(); err != nil {
		return seeded, fmt.Errorf("commit people seed: %w", err)
	}
	return seeded, nil
}

// GetPerson fetches a person record by id.
func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+personColumns+` FROM people WHERE id = ?`, id)
	person, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get person: %w", err)
	}
	return person, nil
}

// PersonIDs returns the set of known person ids as an in-memory membership
// snapshot.
func (s *Store) PersonIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id FROM people`)
	if err != nil {
		return nil, fmt.Errorf("select person ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// PeopleCount returns how many people are in the catalog.
func (s *Store) PeopleCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM people`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count people: %w", err)
	}
	return count, nil
}

// PeoplePage returns up to limit people with ids greater than afterID,
// ordered by id.
func (s *Store) PeoplePage(ctx context.Context, afterID int64, limit int) ([]*Person, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+personColumns+` FROM people WHERE id > ? ORDER BY id LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("people page: %w", err)
	}
	defer rows.Close()

	var people []*Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}
	return people, rows.Err()
}
