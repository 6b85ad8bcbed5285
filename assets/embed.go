// Package assets embeds the stage prompt templates.
package assets

import (
	"embed"
	"fmt"
)

//go:embed prompts/*.md
var prompts embed.FS

//go:embed prompts/_format.md
var FileFormat string

// Prompt returns the raw template for stage.
func Prompt(stage string) (string, error) {
	data, err := prompts.ReadFile("prompts/" + stage + ".md")
	if err != nil {
		return "", fmt.Errorf("no prompt template for stage %q", stage)
	}
	return string(data), nil
}
