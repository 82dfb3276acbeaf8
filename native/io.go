package native

import (
	"os"

	"github.com/wudi/magpie/values"
)

// RegisterIO binds the io namespace: readFile/writeFile, adapted from
// runtime/filesystem.go's os.ReadFile/os.WriteFile wrapping but stripped of
// PHP's file-handle table since Magpie's minimum native surface (§6) only
// names whole-file read/write, not streaming handles.
func RegisterIO(t *Table) {
	t.Define("io.readFile", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		s, ok := args[0].Data.(*values.String)
		if !ok {
			return values.NewString("io.readFile: not a string"), Throw
		}
		data, err := os.ReadFile(s.Content)
		if err != nil {
			return values.NewString(err.Error()), Throw
		}
		return values.NewString(string(data)), Return
	})

	t.Define("io.writeFile", func(host Host, args []*values.Value) (*values.Value, Disposition) {
		path, ok := args[0].Data.(*values.String)
		if !ok {
			return values.NewString("io.writeFile: not a string"), Throw
		}
		content, ok := args[1].Data.(*values.String)
		if !ok {
			return values.NewString("io.writeFile: not a string"), Throw
		}
		if err := os.WriteFile(path.Content, []byte(content.Content), 0644); err != nil {
			return values.NewString(err.Error()), Throw
		}
		return values.NewAtom(values.AtomNothing), Return
	})
}
