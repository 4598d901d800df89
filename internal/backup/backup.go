// Package backup reads and writes the journal's JSON backup document.
//
// FORMAT (version 1.0):
//
//	{
//	  "categories":  [{"colorHex", "iconName", "id", "name", "order"}],
//	  "exportDate":  "2024-06-01T09:00:00.000Z",
//	  "permissions": [{"actualOutcome", "category", "createdAt", "date", "emotionalImpact",
//	                   "emotionalTags", "expectedImpact", "id", "statement", "updatedAt"}],
//	  "tags":        [{"colorHex", "iconName", "id", "name"}],
//	  "version":     "1.0"
//	}
//
// Keys are written in sorted order. Optional text fields are written as ""
// when unset, and "" is read back as unset. Times are UTC ISO-8601 with
// millisecond fractions, the precision the store keeps.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sakif/permission-journal/internal/model"
	"github.com/sakif/permission-journal/internal/service"
)

// Version is the only document version Read accepts.
const Version = "1.0"

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrUnsupportedVersion is returned by Read for documents of another version.
var ErrUnsupportedVersion = errors.New("backup: unsupported version")

// Document is the top-level backup object. Fields are declared in key order
// so the encoder writes sorted keys.
type Document struct {
	Categories  []Category   `json:"categories"`
	ExportDate  string       `json:"exportDate"`
	Permissions []Permission `json:"permissions"`
	Tags        []Tag        `json:"tags"`
	Version     string       `json:"version"`
}

type Permission struct {
	ActualOutcome   string   `json:"actualOutcome"`
	Category        string   `json:"category"`
	CreatedAt       string   `json:"createdAt"`
	Date            string   `json:"date"`
	EmotionalImpact int      `json:"emotionalImpact"`
	EmotionalTags   []string `json:"emotionalTags"`
	ExpectedImpact  string   `json:"expectedImpact"`
	ID              string   `json:"id"`
	Statement       string   `json:"statement"`
	UpdatedAt       string   `json:"updatedAt"`
}

type Category struct {
	ColorHex string `json:"colorHex"`
	IconName string `json:"iconName"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
}

type Tag struct {
	ColorHex string `json:"colorHex"`
	IconName string `json:"iconName"`
	ID       string `json:"id"`
	Name     string `json:"name"`
}

// Source supplies the records to back up.
type Source interface {
	Snapshot(ctx context.Context) (service.Records, error)
}

// Sink receives restored records.
type Sink interface {
	Import(ctx context.Context, records service.Records) error
}

// Export builds a document from everything src holds, stamped with now.
func Export(ctx context.Context, src Source, now time.Time) (*Document, error) {
	records, err := src.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: reading journal: %w", err)
	}
	return FromRecords(records, now), nil
}

// FromRecords converts records to a document.
func FromRecords(records service.Records, now time.Time) *Document {
	doc := &Document{
		Version:     Version,
		ExportDate:  formatTime(now),
		Permissions: make([]Permission, 0, len(records.Permissions)),
		Categories:  make([]Category, 0, len(records.Categories)),
		Tags:        make([]Tag, 0, len(records.Tags)),
	}
	for _, p := range records.Permissions {
		tags := p.EmotionalTags
		if tags == nil {
			tags = []string{}
		}
		doc.Permissions = append(doc.Permissions, Permission{
			ID:              p.ID,
			Statement:       p.Statement,
			Date:            formatTime(p.Date),
			Category:        model.StringValue(p.Category),
			EmotionalTags:   tags,
			ExpectedImpact:  model.StringValue(p.ExpectedImpact),
			ActualOutcome:   model.StringValue(p.ActualOutcome),
			EmotionalImpact: p.EmotionalImpact,
			CreatedAt:       formatTime(p.CreatedAt),
			UpdatedAt:       formatTime(p.UpdatedAt),
		})
	}
	for _, c := range records.Categories {
		doc.Categories = append(doc.Categories, Category{
			ID:       c.ID,
			Name:     c.Name,
			IconName: model.StringValue(c.IconName),
			ColorHex: model.StringValue(c.ColorHex),
			Order:    c.Order,
		})
	}
	for _, t := range records.Tags {
		doc.Tags = append(doc.Tags, Tag{
			ID:       t.ID,
			Name:     t.Name,
			ColorHex: model.StringValue(t.ColorHex),
			IconName: model.StringValue(t.IconName),
		})
	}
	return doc
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("backup: encoding document: %w", err)
	}
	return nil
}

// Read decodes and validates a document.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("backup: decoding document: %w", err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, doc.Version)
	}
	return &doc, nil
}

// Records converts the document back to model records.
func (d *Document) Records() (service.Records, error) {
	records := service.Records{
		Permissions: make([]model.Permission, 0, len(d.Permissions)),
		Categories:  make([]model.Category, 0, len(d.Categories)),
		Tags:        make([]model.Tag, 0, len(d.Tags)),
	}

	for _, p := range d.Permissions {
		date, err := parseTime(p.Date)
		if err != nil {
			return service.Records{}, fmt.Errorf("backup: permission %s date: %w", p.ID, err)
		}
		created, err := parseTime(p.CreatedAt)
		if err != nil {
			return service.Records{}, fmt.Errorf("backup: permission %s createdAt: %w", p.ID, err)
		}
		updated, err := parseTime(p.UpdatedAt)
		if err != nil {
			return service.Records{}, fmt.Errorf("backup: permission %s updatedAt: %w", p.ID, err)
		}
		tags := p.EmotionalTags
		if tags == nil {
			tags = []string{}
		}
		records.Permissions = append(records.Permissions, model.Permission{
			ID:              p.ID,
			Statement:       p.Statement,
			Date:            date,
			Category:        model.StringPtr(p.Category),
			EmotionalTags:   tags,
			ExpectedImpact:  model.StringPtr(p.ExpectedImpact),
			ActualOutcome:   model.StringPtr(p.ActualOutcome),
			EmotionalImpact: p.EmotionalImpact,
			CreatedAt:       created,
			UpdatedAt:       updated,
		})
	}
	for _, c := range d.Categories {
		records.Categories = append(records.Categories, model.Category{
			ID:       c.ID,
			Name:     c.Name,
			IconName: model.StringPtr(c.IconName),
			ColorHex: model.StringPtr(c.ColorHex),
			Order:    c.Order,
		})
	}
	for _, t := range d.Tags {
		records.Tags = append(records.Tags, model.Tag{
			ID:       t.ID,
			Name:     t.Name,
			ColorHex: model.StringPtr(t.ColorHex),
			IconName: model.StringPtr(t.IconName),
		})
	}
	return records, nil
}

// Restore imports every record in doc into sink.
func Restore(ctx context.Context, sink Sink, doc *Document) error {
	records, err := doc.Records()
	if err != nil {
		return err
	}
	if err := sink.Import(ctx, records); err != nil {
		return fmt.Errorf("backup: restoring: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
