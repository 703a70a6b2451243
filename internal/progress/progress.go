// Package progress renders a progress bar over the driver loop. A nil *Bar is
// valid and does nothing, so callers need not check whether progress output
// was requested.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar counting up to total, rendered on w.
func New(w io.Writer, total int, description string) *Bar {
	return &Bar{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Describe(description string) {
	if b == nil {
		return
	}
	b.bar.Describe(description)
}

func (b *Bar) Add(n int) error {
	if b == nil {
		return nil
	}
	return b.bar.Add(n)
}

func (b *Bar) Finish() error {
	if b == nil {
		return nil
	}
	return b.bar.Finish()
}
