package export

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/classify"
	"github.com/banshee-data/landcover.report/internal/raster"
	"github.com/banshee-data/landcover.report/internal/testutil"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

type recordingWriter struct {
	mu      sync.Mutex
	written map[string]*raster.Image
	kinds   map[string]Kind
	fail    error
	gate    chan struct{}
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{written: map[string]*raster.Image{}, kinds: map[string]Kind{}}
}

func (w *recordingWriter) Write(path string, im *raster.Image, kind Kind) error {
	if w.gate != nil {
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.written[path] = im
	w.kinds[path] = kind
	return nil
}

func TestClassMask(t *testing.T) {
	g := testutil.Grid(4, 1)
	labels := testutil.LabelImage(t, g, 2010, []int{1, 3, 0, -1})

	m, err := ClassMask(labels, classify.UrbanArea)
	require.NoError(t, err)
	b, ok := m.Band(MaskBand)
	require.True(t, ok)

	v, ok := b.At(0)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)
	v, ok = b.At(1)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = b.At(2)
	assert.False(t, ok, "unclassified stays masked")
	_, ok = b.At(3)
	assert.False(t, ok)
	assert.Equal(t, 2010, m.Metadata.Year)

	_, err = ClassMask(labels, 7)
	assert.Error(t, err)
	_, err = ClassMask(raster.NewImage(g, raster.Metadata{}), 1)
	assert.ErrorIs(t, err, raster.ErrBandNotFound)
}

func TestClassMaskPlaceholderIsAllZero(t *testing.T) {
	g := testutil.Grid(3, 1)
	ph := raster.NewPlaceholder(g, raster.Metadata{Year: 1995}, classify.LabelBand)
	m, err := ClassMask(ph, classify.Water)
	require.NoError(t, err)
	b, _ := m.Band(MaskBand)
	assert.Equal(t, 3, b.ValidCount())
	for i := 0; i < 3; i++ {
		v, _ := b.At(i)
		assert.Equal(t, 0.0, v)
	}
}

func TestDispatcherWritesInBackground(t *testing.T) {
	dir := t.TempDir()
	w := newRecordingWriter()
	d := NewDispatcher(dir, w, 8)
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	d.SetClock(clock)
	d.Start(2)

	labels := testutil.LabelImage(t, testutil.Grid(2, 2), 2020, []int{1, 2, 3, 4})
	id1, err := d.Labels(labels)
	require.NoError(t, err)
	clock.Advance(time.Second)
	id2, err := d.Mask(labels, classify.Water)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	d.Stop()

	st, ok := d.Status(id1)
	require.True(t, ok)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, filepath.Join(dir, "lulc_2020.tif"), st.Path)
	assert.Equal(t, KindLabels, w.kinds[st.Path])

	st, ok = d.Status(id2)
	require.True(t, ok)
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, filepath.Join(dir, "mask_water_2020.tif"), st.Path)
	assert.Equal(t, classify.Water, st.Class)
	assert.Equal(t, []string{MaskBand}, w.written[st.Path].BandNames())

	list := d.List()
	require.Len(t, list, 2)
	assert.Equal(t, id1, list[0].ID)

	_, ok = d.Status("unknown")
	assert.False(t, ok)

	_, err = d.Labels(labels)
	assert.ErrorIs(t, err, ErrStopped)
	d.Stop()
}

func TestDispatcherRecordsFailure(t *testing.T) {
	w := newRecordingWriter()
	w.fail = errors.New("disk full")
	d := NewDispatcher(t.TempDir(), w, 1)
	d.Start(1)

	comp := testutil.LabelImage(t, testutil.Grid(1, 1), 2005, []int{1})
	id, err := d.Composite(comp)
	require.NoError(t, err)
	d.Stop()

	st, _ := d.Status(id)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "disk full", st.Error)
	assert.False(t, st.FinishedAt.IsZero())
}

func TestDispatcherRejectsPlaceholderComposite(t *testing.T) {
	d := NewDispatcher(t.TempDir(), newRecordingWriter(), 1)
	ph := raster.NewPlaceholder(testutil.Grid(1, 1), raster.Metadata{Year: 1995}, "Blue")
	_, err := d.Composite(ph)
	assert.ErrorIs(t, err, ErrPlaceholder)
}

func TestDispatcherQueueFull(t *testing.T) {
	w := newRecordingWriter()
	w.gate = make(chan struct{})
	d := NewDispatcher(t.TempDir(), w, 1)
	labels := testutil.LabelImage(t, testutil.Grid(1, 1), 2000, []int{1})

	// no workers yet, so the single slot fills
	_, err := d.Labels(labels)
	require.NoError(t, err)
	_, err = d.Labels(labels)
	assert.ErrorIs(t, err, ErrQueueFull)

	d.Start(1)
	close(w.gate)
	d.Stop()
	assert.Len(t, d.List(), 1)
}
