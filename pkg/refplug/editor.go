package refplug

import (
	"github.com/justyntemme/claphost/pkg/clap"
)

const (
	editorMinSize = 200
	editorMaxSize = 2000
)

// editor is a headless stand-in for a plugin GUI. It tracks the state a real
// editor would keep so the host side can be exercised without a toolkit.
type editor struct {
	host *clap.Host

	created bool
	api     string
	parent  *clap.Window
	visible bool
	width   uint32
	height  uint32
	scale   float64
	title   string
}

func newEditor(host *clap.Host, width, height uint32) *editor {
	return &editor{host: host, width: width, height: height, scale: 1}
}

func supportedAPI(api string) bool {
	switch api {
	case clap.WindowAPIWin32, clap.WindowAPICocoa, clap.WindowAPIX11, clap.WindowAPIWayland:
		return true
	}
	return false
}

func (e *editor) table() *clap.PluginGUI {
	return &clap.PluginGUI{
		IsAPISupported: func(api string, isFloating bool) bool {
			return supportedAPI(api) && !isFloating
		},
		GetPreferredAPI: func() (string, bool, bool) {
			return clap.WindowAPIX11, false, true
		},
		Create: func(api string, isFloating bool) bool {
			if e.created || isFloating || !supportedAPI(api) {
				return false
			}
			e.created = true
			e.api = api
			return true
		},
		Destroy: func() {
			e.created = false
			e.visible = false
			e.parent = nil
		},
		SetScale: func(scale float64) bool {
			if scale <= 0 {
				return false
			}
			e.scale = scale
			return true
		},
		GetSize: func() (uint32, uint32, bool) {
			return e.width, e.height, e.created
		},
		CanResize: func() bool { return true },
		GetResizeHints: func(hints *clap.GUIResizeHints) bool {
			*hints = clap.GUIResizeHints{CanResizeHorizontally: true, CanResizeVertically: true}
			return true
		},
		AdjustSize: func(w, h uint32) (uint32, uint32, bool) {
			return clampSize(w), clampSize(h), true
		},
		SetSize: func(w, h uint32) bool {
			if !e.created || clampSize(w) != w || clampSize(h) != h {
				return false
			}
			e.width, e.height = w, h
			return true
		},
		SetParent: func(window *clap.Window) bool {
			if !e.created || window == nil || window.API != e.api {
				return false
			}
			e.parent = window
			return true
		},
		SetTransient: func(window *clap.Window) bool { return false },
		SuggestTitle: func(title string) { e.title = title },
		Show: func() bool {
			if !e.created {
				return false
			}
			e.visible = true
			return true
		},
		Hide: func() bool {
			if !e.created {
				return false
			}
			e.visible = false
			return true
		},
	}
}

// userClosed simulates the user closing the editor window.
func (e *editor) userClosed() {
	e.created = false
	e.visible = false
	e.parent = nil
	if g := hostExt[clap.HostGUI](e.host, clap.ExtGUI); g != nil && g.Closed != nil {
		g.Closed(true)
	}
}

func clampSize(v uint32) uint32 {
	return max(editorMinSize, min(editorMaxSize, v))
}
