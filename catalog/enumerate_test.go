package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-parts/checkpoint"
)

type fakeSource struct {
	years      []string
	makes      map[string][]string
	models     map[string][]string
	parts      map[string][]Part
	partsErr   map[string]error
	modelsErr  error
	makeCalls  []string
	modelCalls []string
}

func (f *fakeSource) Years(context.Context) ([]string, error) { return f.years, nil }

func (f *fakeSource) Makes(_ context.Context, year string) ([]string, error) {
	f.makeCalls = append(f.makeCalls, year)
	return f.makes[year], nil
}

func (f *fakeSource) Models(_ context.Context, year, vehicleMake string) ([]string, error) {
	f.modelCalls = append(f.modelCalls, year+"/"+vehicleMake)
	if f.modelsErr != nil {
		return nil, f.modelsErr
	}
	return f.models[vehicleMake], nil
}

func (f *fakeSource) Parts(_ context.Context, _, _, model string) ([]Part, error) {
	if err := f.partsErr[model]; err != nil {
		return nil, err
	}
	return f.parts[model], nil
}

type memorySink struct {
	links []Link
}

func (m *memorySink) WriteLinks(links []Link) error {
	m.links = append(m.links, links...)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSource() *fakeSource {
	return &fakeSource{
		years: []string{"2009", "2011", "Select Year", "2012"},
		makes: map[string][]string{
			"2011": {"Audi", "Ford"},
			"2012": {"Ford"},
		},
		models: map[string][]string{
			"Audi": {"A4"},
			"Ford": {"F150", "Ranger", "Focus"},
		},
		parts: map[string][]Part{
			"A4":   {{Name: "Hood", Slug: "hood"}},
			"F150": {{Name: "Engine", Slug: "engine"}, {Name: "Door", Slug: "door"}},
		},
		partsErr: map[string]error{"Ranger": errors.New("selector timed out")},
	}
}

func TestEnumeratorWalksEligibleYears(t *testing.T) {
	src := newSource()
	sink := &memorySink{}
	cursor := checkpoint.NewCursorStore(filepath.Join(t.TempDir(), "checkpoint.txt"))

	e := NewEnumerator(src, sink, cursor, "https://site.test", 2010, "ts", quietLogger())
	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"2011", "2012"}, src.makeCalls)
	assert.Equal(t, EnumerateStats{Years: 2, Makes: 3, Models: 7, Links: 5, ZeroRows: 4}, stats)

	var f150 []Link
	for _, l := range sink.links {
		if l.Year == "2011" && l.Model == "F150" {
			f150 = append(f150, l)
		}
	}
	require.Len(t, f150, 2)
	assert.True(t, f150[0].LinkFound)
	assert.Equal(t, 2, f150[0].PartCount)
	assert.Equal(t, "https://site.test/catalog-6/vehicle/Ford/2011/F150/engine", f150[0].URL)
	assert.Equal(t, "ts", f150[0].RunTimestamp)

	zero := Link{RunTimestamp: "ts", Year: "2011", Make: "Ford", Model: "Ranger"}
	assert.Contains(t, sink.links, zero)

	_, ok, err := cursor.Load()
	require.NoError(t, err)
	assert.False(t, ok, "cursor cleared after a complete walk")
}

func TestEnumeratorResumesFromCursor(t *testing.T) {
	src := newSource()
	sink := &memorySink{}
	cursor := checkpoint.NewCursorStore(filepath.Join(t.TempDir(), "checkpoint.txt"))
	require.NoError(t, cursor.Save("2011", "audi"))

	e := NewEnumerator(src, sink, cursor, "https://site.test", 2010, "ts", quietLogger())
	stats, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.SkippedMakes)
	assert.Equal(t, []string{"2011/Ford", "2012/Ford"}, src.modelCalls)
	for _, l := range sink.links {
		assert.NotEqual(t, "Audi", l.Make)
	}
}

func TestEnumeratorSkipsFinishedYears(t *testing.T) {
	src := newSource()
	cursor := checkpoint.NewCursorStore(filepath.Join(t.TempDir(), "checkpoint.txt"))
	require.NoError(t, cursor.Save("2012", ""))

	e := NewEnumerator(src, &memorySink{}, cursor, "https://site.test", 2010, "ts", quietLogger())
	_, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2012"}, src.makeCalls)
}

func TestEnumeratorKeepsCursorOnFatalError(t *testing.T) {
	src := newSource()
	src.makes["2011"] = []string{"Audi"}
	cursor := checkpoint.NewCursorStore(filepath.Join(t.TempDir(), "checkpoint.txt"))

	e := NewEnumerator(src, &memorySink{}, cursor, "https://site.test", 2010, "ts", quietLogger())
	_, err := e.Run(context.Background())
	require.NoError(t, err)

	src.modelsErr = errors.New("model selector missing")
	require.NoError(t, cursor.Save("2011", "Audi"))
	_, err = e.Run(context.Background())
	require.Error(t, err)

	cur, ok, err := cursor.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, checkpoint.Cursor{Year: "2011", Make: "Audi"}, cur)
}

func TestEnumeratorWithoutCursor(t *testing.T) {
	sink := &memorySink{}
	e := NewEnumerator(newSource(), sink, nil, "https://site.test", 2012, "ts", nil)
	stats, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Years)
	assert.Len(t, sink.links, 4)
}
