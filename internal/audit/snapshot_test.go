package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type snapshotChild struct {
	Name string
}

type snapshotSubject struct {
	ID     int64
	Name   string
	Price  float64
	Active bool

	Meta

	CreatedAt time.Time
	DeletedAt *time.Time

	secret string

	Ignored string `gorm:"-"`

	Children []snapshotChild
	Lookup   map[string]string
	Child    snapshotChild
}

func TestSnapshot_CapturesScalars(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := Snapshot(&snapshotSubject{
		ID:        42,
		Name:      "Widget",
		Price:     19.99,
		Active:    true,
		CreatedAt: now,
	})

	assert.Equal(t, int64(42), got["ID"])
	assert.Equal(t, "Widget", got["Name"])
	assert.Equal(t, 19.99, got["Price"])
	assert.Equal(t, true, got["Active"])
	assert.Equal(t, "2026-03-14T09:26:53Z", got["CreatedAt"])
}

func TestSnapshot_FlattensEmbeddedMeta(t *testing.T) {
	actor := int64(7)
	got := Snapshot(&snapshotSubject{Meta: Meta{CreatedBy: &actor, Version: 3}})

	assert.Equal(t, int64(7), got["CreatedBy"])
	assert.Equal(t, int64(3), got["Version"])
	assert.Nil(t, got["ModifiedBy"])
}

func TestSnapshot_SkipsNavigationAndUnexported(t *testing.T) {
	got := Snapshot(&snapshotSubject{
		secret:   "hidden",
		Ignored:  "ignored",
		Children: []snapshotChild{{Name: "a"}},
		Lookup:   map[string]string{"k": "v"},
		Child:    snapshotChild{Name: "b"},
	})

	assert.NotContains(t, got, "secret")
	assert.NotContains(t, got, "Ignored")
	assert.NotContains(t, got, "Children")
	assert.NotContains(t, got, "Lookup")
	assert.NotContains(t, got, "Child")
}

func TestSnapshot_NilAndZeroTimes(t *testing.T) {
	got := Snapshot(&snapshotSubject{})

	assert.Nil(t, got["CreatedAt"], "zero time renders as null")
	assert.Nil(t, got["DeletedAt"], "nil pointer renders as null")
}

func TestSnapshot_NilPointerEntity(t *testing.T) {
	var subject *snapshotSubject
	assert.Empty(t, Snapshot(subject))
}
