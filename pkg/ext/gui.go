package ext

import (
	"runtime"

	"github.com/rs/zerolog"

	"github.com/justyntemme/claphost/pkg/clap"
)

// DefaultEditorSize is used when the plugin does not report a size.
var DefaultEditorSize = EditorSize{Width: 800, Height: 600}

// EditorSize is an editor's size in pixels.
type EditorSize struct {
	Width  uint32
	Height uint32
}

// PlatformAPI returns the embedded window API of the running platform.
func PlatformAPI() string {
	switch runtime.GOOS {
	case "windows":
		return clap.WindowAPIWin32
	case "darwin":
		return clap.WindowAPICocoa
	}
	return clap.WindowAPIX11
}

// Editor wraps the gui extension. At most one editor is open per instance.
// All calls are main-thread only.
type Editor struct {
	raw   *clap.PluginGUI
	guard *Guard
	log   zerolog.Logger

	open bool
	api  string
	size EditorSize
}

// NewEditor negotiates the gui extension. Tables missing the create, destroy,
// set-parent, show or hide functions are treated as unsupported.
func NewEditor(n *Negotiator) (*Editor, bool) {
	h, ok := n.Negotiate(clap.ExtGUI)
	if !ok {
		return nil, false
	}
	raw, ok := h.raw.(*clap.PluginGUI)
	if !ok || raw.Create == nil || raw.Destroy == nil || raw.SetParent == nil || raw.Show == nil || raw.Hide == nil {
		n.reject(clap.ExtGUI, "unusable table")
		return nil, false
	}
	return &Editor{raw: raw, guard: n.guard, log: n.log}, true
}

// IsAPISupported reports whether the editor can embed into api windows.
func (e *Editor) IsAPISupported(api string) bool {
	if e.raw.IsAPISupported == nil {
		return true
	}
	return e.raw.IsAPISupported(api, false)
}

// IsOpen reports whether an editor is currently open.
func (e *Editor) IsOpen() bool {
	return e.open
}

// Size returns the size negotiated by the last Open or Resize.
func (e *Editor) Size() EditorSize {
	return e.size
}

// Open creates the editor, embeds it into parent and shows it. The window
// handle is passed through untouched. If any step fails the editor is
// destroyed again and the instance is left without an open editor.
func (e *Editor) Open(parent clap.Window) (EditorSize, error) {
	if err := e.guard.Check("gui.open"); err != nil {
		return EditorSize{}, err
	}
	if e.open {
		return EditorSize{}, clap.NewError(clap.ErrEditorAlreadyOpen, "gui.open")
	}

	api := parent.API
	if api == "" {
		api = PlatformAPI()
	}
	if !e.IsAPISupported(api) {
		return EditorSize{}, clap.Errorf(clap.ErrEditor, "gui.open", "window api %q not supported", api)
	}
	if !e.raw.Create(api, false) {
		return EditorSize{}, clap.Errorf(clap.ErrEditor, "gui.open", "plugin failed to create %s editor", api)
	}

	window := parent
	window.API = api
	if !e.raw.SetParent(&window) {
		e.raw.Destroy()
		return EditorSize{}, clap.Errorf(clap.ErrEditor, "gui.open", "plugin refused parent window")
	}

	size := DefaultEditorSize
	if e.raw.GetSize != nil {
		if w, h, ok := e.raw.GetSize(); ok {
			size = EditorSize{Width: w, Height: h}
		}
	}

	if !e.raw.Show() {
		e.log.Warn().Msg("editor show request was refused")
	}

	e.open = true
	e.api = api
	e.size = size
	e.log.Debug().Str("api", api).Uint32("width", size.Width).Uint32("height", size.Height).Msg("editor opened")
	return size, nil
}

// Close hides and destroys the open editor.
func (e *Editor) Close() error {
	if err := e.guard.Check("gui.close"); err != nil {
		return err
	}
	if !e.open {
		return clap.NewError(clap.ErrEditorClosed, "gui.close")
	}
	e.raw.Hide()
	e.raw.Destroy()
	e.open = false
	e.log.Debug().Msg("editor closed")
	return nil
}

// Closed handles a plugin-initiated close. When wasDestroyed is set the
// plugin has torn down its window and expects destroy as acknowledgement.
func (e *Editor) Closed(wasDestroyed bool) {
	if !e.open {
		return
	}
	if wasDestroyed {
		e.raw.Destroy()
		e.open = false
	}
}

// Resize asks the editor to take width x height. The plugin may adjust the
// request; the applied size is returned.
func (e *Editor) Resize(width, height uint32) (EditorSize, error) {
	if err := e.guard.Check("gui.resize"); err != nil {
		return EditorSize{}, err
	}
	if !e.open {
		return EditorSize{}, clap.NewError(clap.ErrEditorClosed, "gui.resize")
	}
	if e.raw.CanResize == nil || e.raw.SetSize == nil || !e.raw.CanResize() {
		return e.size, nil
	}
	if e.raw.AdjustSize != nil {
		if w, h, ok := e.raw.AdjustSize(width, height); ok {
			width, height = w, h
		}
	}
	if !e.raw.SetSize(width, height) {
		return e.size, nil
	}
	e.size = EditorSize{Width: width, Height: height}
	return e.size, nil
}
