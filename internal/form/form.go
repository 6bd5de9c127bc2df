package form

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// Response is a successful upload.
type Response struct {
	Payload []byte
}

// Uploader sends the selected files in a single request. A failure whose
// text should be shown as is implements DetailError.
type Uploader interface {
	Upload(ctx context.Context, files []File) (*Response, error)
}

// DetailError is an error carrying a message meant for the user.
type DetailError interface {
	error
	UserMessage() string
}

// Downloader hands a payload to the user under a fixed name.
type Downloader interface {
	Download(name string, payload io.Reader) error
}

// Observer is called with every new state.
type Observer func(State)

// Form holds the current state and runs the handlers.
type Form struct {
	mu        sync.Mutex
	state     State
	uploader  Uploader
	download  Downloader
	observers []Observer
}

// New creates an idle form with no files selected.
func New(uploader Uploader, download Downloader) *Form {
	return &Form{uploader: uploader, download: download}
}

// Subscribe registers an observer. It is called immediately with the
// current state.
func (f *Form) Subscribe(o Observer) {
	f.mu.Lock()
	f.observers = append(f.observers, o)
	s := f.state
	f.mu.Unlock()
	o(s)
}

// State returns the current state.
func (f *Form) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Form) update(fn func(State) State) State {
	f.mu.Lock()
	f.state = fn(f.state)
	s := f.state
	observers := append([]Observer(nil), f.observers...)
	f.mu.Unlock()

	for _, o := range observers {
		o(s)
	}
	return s
}

// OnFilesSelected replaces the selection and clears any error.
func (f *Form) OnFilesSelected(files []File) {
	f.update(func(s State) State {
		return s.withFiles(files).withErr("")
	})
}

// OnSubmit uploads the selection and downloads the result. It returns the
// error shown to the user, or nil. A submit while another one is in flight
// is ignored.
func (f *Form) OnSubmit(ctx context.Context) error {
	var (
		files []File
		busy  bool
	)
	f.update(func(s State) State {
		if s.Loading {
			busy = true
			return s
		}
		files = s.files
		return s.withErr("")
	})
	if busy {
		return nil
	}

	if len(files) == 0 {
		f.update(func(s State) State { return s.withErr(MsgNoFiles) })
		return errors.New(MsgNoFiles)
	}

	f.update(func(s State) State { return s.withLoading(true) })
	defer f.update(func(s State) State { return s.withLoading(false) })

	if err := f.submit(ctx, files); err != nil {
		msg := message(err)
		f.update(func(s State) State { return s.withErr(msg) })
		return errors.New(msg)
	}
	return nil
}

func (f *Form) submit(ctx context.Context, files []File) error {
	resp, err := f.uploader.Upload(ctx, files)
	if err != nil {
		return err
	}
	return f.download.Download(DownloadName, bytes.NewReader(resp.Payload))
}

func message(err error) string {
	var de DetailError
	if errors.As(err, &de) {
		if m := de.UserMessage(); m != "" {
			return m
		}
		return MsgFallback
	}
	if m := err.Error(); m != "" {
		return m
	}
	return MsgFallback
}
