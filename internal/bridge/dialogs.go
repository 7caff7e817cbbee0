package bridge

import (
	"context"
	"log"
	"sync"

	"github.com/petervdpas/elypad/internal/capability"
)

// Dialogs stands in for native dialogs when there is no window. Pickers
// always cancel, since clients pass paths explicitly. The save-before-close
// question is answered from a per-document answer set by the client, or
// from SaveOnClose.
type Dialogs struct {
	SaveOnClose bool

	mu      sync.Mutex
	answers map[string]bool
}

var _ capability.Dialogs = (*Dialogs)(nil)

func NewDialogs(saveOnClose bool) *Dialogs {
	return &Dialogs{SaveOnClose: saveOnClose, answers: make(map[string]bool)}
}

// Answer sets the reply to the next save-before-close prompt for name.
func (d *Dialogs) Answer(name string, save bool) {
	d.mu.Lock()
	d.answers[name] = save
	d.mu.Unlock()
}

func (d *Dialogs) PickOpenFile(ctx context.Context) (string, error) {
	log.Printf("BRIDGE: no file picker without a window")
	return "", nil
}

func (d *Dialogs) PickOpenFolder(ctx context.Context) (string, error) {
	log.Printf("BRIDGE: no folder picker without a window")
	return "", nil
}

func (d *Dialogs) PickSaveFile(ctx context.Context) (string, error) {
	log.Printf("BRIDGE: no save picker without a window")
	return "", nil
}

func (d *Dialogs) ConfirmSaveBeforeClose(ctx context.Context, name string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if save, ok := d.answers[name]; ok {
		delete(d.answers, name)
		return save, nil
	}
	return d.SaveOnClose, nil
}
