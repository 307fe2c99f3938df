// Package functions wires the builtin tools into a registry at startup.
// Registration is explicit rather than an import side effect, so the set
// of tools a registry carries is visible at the call site.
package functions

import (
	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/functions/desktop"
	"github.com/quillsh/quill/internal/functions/file"
	"github.com/quillsh/quill/internal/functions/misc"
	"github.com/quillsh/quill/internal/functions/network"
	"github.com/quillsh/quill/internal/functions/shell"
	"github.com/quillsh/quill/internal/functions/system"
	"github.com/quillsh/quill/internal/functions/web"
	"github.com/quillsh/quill/internal/tools"
)

// RegisterAll registers every builtin tool group. Group order is fixed;
// it determines the order of the manifest the model sees.
func RegisterAll(reg *tools.Registry, cfg *config.Config) {
	file.Register(reg)
	shell.Register(reg, cfg)
	system.Register(reg)
	web.Register(reg)
	network.Register(reg)
	desktop.Register(reg)
	misc.Register(reg)
}
