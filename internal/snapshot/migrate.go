package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"jobwatch/internal/model"
)

// Version 1 snapshots were a bare JSON array of items keyed by link, the
// format the earliest cache files used. The legacy field had no explicit
// unavailable flag; protected pages were marked with this sentinel string in
// the description.
const legacyUnavailableSentinel = "Details unavailable due to site protection"

type legacyItem struct {
	Title        string `json:"title"`
	Link         string `json:"link"`
	Team         string `json:"team"`
	Date         string `json:"date"`
	Description  string `json:"description"`
	Requirements string `json:"requirements"`
	Location     string `json:"location"`
	PostingDate  string `json:"posting_date"`
}

// decode parses snapshot bytes at any supported schema version and returns
// the collection migrated to the current version, plus the version the bytes
// were stored at.
func decode(key string, data []byte) (*model.Collection, int, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, 0, &model.CorruptError{Key: key, Err: fmt.Errorf("empty snapshot")}
	}

	if trimmed[0] == '[' {
		coll, err := migrateV1(key, trimmed)
		if err != nil {
			return nil, 0, err
		}
		return coll, 1, nil
	}

	var coll model.Collection
	if err := json.Unmarshal(trimmed, &coll); err != nil {
		return nil, 0, &model.CorruptError{Key: key, Err: err}
	}
	switch {
	case coll.SchemaVersion == model.SchemaVersion:
		// Current format.
	case coll.SchemaVersion > model.SchemaVersion:
		return nil, 0, fmt.Errorf("snapshot %s: schema version %d is newer than supported version %d", key, coll.SchemaVersion, model.SchemaVersion)
	default:
		// An envelope below the current version would have come from a
		// release that never existed; version 1 was the bare array.
		return nil, 0, &model.CorruptError{Key: key, Err: fmt.Errorf("envelope with unexpected schema version %d", coll.SchemaVersion)}
	}
	if coll.Postings == nil {
		return nil, 0, &model.CorruptError{Key: key, Err: fmt.Errorf("envelope missing postings")}
	}
	// Identities live in the map keys; restore the field for any posting
	// whose sidecar copy was stripped.
	for id, p := range coll.Postings {
		if p.Identity == "" {
			p.Identity = id
			coll.Postings[id] = p
		}
	}
	return &coll, coll.SchemaVersion, nil
}

// migrateV1 converts the legacy array format into a current-version
// collection: items are keyed by link, missing fields get defaults, and the
// legacy protection sentinel becomes an Unavailable detail.
func migrateV1(key string, data []byte) (*model.Collection, error) {
	var items []legacyItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &model.CorruptError{Key: key, Err: err}
	}

	coll := model.NewCollection(key)
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		p := model.Posting{
			Identity: it.Link,
			Title:    it.Title,
			Team:     it.Team,
			Location: it.Location,
			URL:      it.Link,
		}
		if t, err := time.Parse(time.RFC3339, it.Date); err == nil {
			p.FetchedAt = t
		}
		if t, err := time.Parse(time.RFC3339, it.PostingDate); err == nil {
			p.PostedDate = &t
		}
		switch {
		case it.Description == legacyUnavailableSentinel:
			p.Detail = &model.Detail{Unavailable: true}
		case it.Description != "" || it.Requirements != "":
			p.Detail = &model.Detail{
				Text:         it.Description,
				Requirements: it.Requirements,
			}
		}
		coll.Add(p)
	}
	return coll, nil
}
