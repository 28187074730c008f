package modules

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
)

// ErrFrozen is returned when appending to a frozen List.
var ErrFrozen = errors.New("module list is frozen")

// List is a reference counted collection of images. Once frozen it is
// immutable and may be shared between goroutines without locking.
type List struct {
	mu     sync.Mutex
	images []Image
	frozen atomic.Bool
	refs   atomic.Int32
}

// NewList returns an empty list holding one reference.
func NewList() *List {
	l := &List{}
	l.refs.Store(1)
	return l
}

// Append adds an image to the list.
func (l *List) Append(img Image) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen.Load() {
		return ErrFrozen
	}
	l.images = append(l.images, img)
	return nil
}

// Freeze makes the list immutable.
func (l *List) Freeze() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen.Store(true)
}

// Frozen reports whether the list has been frozen.
func (l *List) Frozen() bool {
	return l.frozen.Load()
}

// IncRef takes an additional reference.
func (l *List) IncRef() {
	l.refs.Add(1)
}

// DecRef releases a reference and returns the number of references left.
// The images are released with the last reference.
func (l *List) DecRef() int32 {
	n := l.refs.Add(-1)
	if n == 0 {
		l.mu.Lock()
		l.images = nil
		l.mu.Unlock()
	}
	return n
}

// RefCount returns the current number of references.
func (l *List) RefCount() int32 {
	return l.refs.Load()
}

// Len returns the number of images.
func (l *List) Len() int {
	if l.frozen.Load() {
		return len(l.images)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.images)
}

// At returns the image at index i.
func (l *List) At(i int) Image {
	if l.frozen.Load() {
		return l.images[i]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.images[i]
}

// Images returns a copy of the images.
func (l *List) Images() []Image {
	if l.frozen.Load() {
		return slices.Clone(l.images)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.images)
}
