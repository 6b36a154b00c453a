// Package clipboard mediates between the pipeline and the system
// pasteboard. The clipboard is a process-wide shared resource, so every
// programmatic paste saves the prior contents and puts them back.
package clipboard

import cb "github.com/atotto/clipboard"

func Read() (string, error) {
	return cb.ReadAll()
}

func Copy(text string) error {
	return cb.WriteAll(text)
}
