package observer

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mtx  sync.Mutex
	data []string
	errs []error
}

func (r *recordingObserver) OnData(data string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.data = append(r.data, data)
}

func (r *recordingObserver) OnError(err error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.errs = append(r.errs, err)
}

func TestSlotEmitWithNoObserverIsNoop(t *testing.T) {
	var s Slot
	require.NotPanics(t, func() {
		s.Emit("hello")
		s.EmitEOF()
		s.EmitError(errors.New("boom"))
	})
}

func TestSlotDeliversToInstalledObserver(t *testing.T) {
	var s Slot
	rec := &recordingObserver{}
	s.Set(rec)

	s.Emit("one")
	s.Emit("two")
	s.EmitEOF()

	require.Equal(t, []string{"one", "two"}, rec.data)
	require.Len(t, rec.errs, 1)
	require.True(t, errors.Is(rec.errs[0], ErrEOF))
}

func TestSlotReplaceSwapsObserver(t *testing.T) {
	var s Slot
	first := &recordingObserver{}
	second := &recordingObserver{}

	s.Set(first)
	s.Emit("to-first")
	s.Set(second)
	s.Emit("to-second")

	require.Equal(t, []string{"to-first"}, first.data)
	require.Equal(t, []string{"to-second"}, second.data)
}

func TestFuncObserverAdaptsPlainFuncs(t *testing.T) {
	var gotData string
	var gotErr error
	fo := FuncObserver{
		Data:  func(d string) { gotData = d },
		Error: func(e error) { gotErr = e },
	}

	fo.OnData("x")
	fo.OnError(errors.New("y"))

	require.Equal(t, "x", gotData)
	require.EqualError(t, gotErr, "y")
}
