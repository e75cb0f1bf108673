package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestCategorySentinels(t *testing.T) {
	t.Parallel()

	err := New(fmt.Errorf("read failed")).
		Component("source").
		Category(CategorySourceCapture).
		Context("device", "USB Mic").
		Build()

	assert.ErrorIs(t, err, ErrSourceCapture)
	assert.NotErrorIs(t, err, ErrSourceInit)
	assert.True(t, IsCategory(err, CategorySourceCapture))

	wrapped := fmt.Errorf("tick: %w", err)
	assert.ErrorIs(t, wrapped, ErrSourceCapture)
	assert.Equal(t, "USB Mic", err.GetContext()["device"])
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	t.Parallel()

	inner := New(NewStd("enumeration failed")).Category(CategoryDiscovery).Build()
	outer := New(inner).Component("registry").Build()

	assert.Equal(t, CategoryDiscovery, outer.Category)
	assert.Equal(t, "registry", outer.GetComponent())
}

func TestNilErrorMessage(t *testing.T) {
	t.Parallel()

	ee := New(nil).Category(CategoryState).Context("error", "coordinator already running").Build()
	assert.Equal(t, "coordinator already running", ee.Error())

	bare := New(nil).Category(CategoryState).Build()
	assert.Equal(t, string(CategoryState), bare.Error())
}

func TestGetContextReturnsCopy(t *testing.T) {
	t.Parallel()

	ee := New(NewStd("x")).Context("pin", 26).Build()
	ctx := ee.GetContext()
	ctx["pin"] = 5

	assert.Equal(t, 26, ee.GetContext()["pin"])
}

type recordingReporter struct {
	mu     sync.Mutex
	errors []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ee)
}

// Not parallel: installs the package-level reporter.
func TestReporter(t *testing.T) {
	rec := &recordingReporter{}
	SetReporter(rec)
	t.Cleanup(func() { SetReporter(nil) })

	New(NewStd("silent")).Build()
	reported := New(NewStd("loop crashed")).Category(CategoryFatalLoop).Report().Build()

	require.Len(t, rec.errors, 1)
	assert.Same(t, reported, rec.errors[0])
	assert.True(t, reported.IsReported())

	SetReporter(nil)
	New(NewStd("after disable")).Report().Build()
	assert.Len(t, rec.errors, 1)
}
