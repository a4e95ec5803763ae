// Package extract assembles the final prompt sent to every adapter: the user
// prompt plus the text of uploaded non-image files. This is a read-only
// pre-dispatch step; adapters receive the assembled string and never touch
// files themselves.
package extract

import (
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// File is one uploaded attachment. Content is the raw file bytes decoded as
// text; binary formats are expected to be converted upstream.
type File struct {
	Name     string
	MIMEType string
	Content  string
}

// attachment header separating each file's text inside the prompt.
const fileHeader = "\n\n--- %s ---\n"

// IsImage reports whether the file should be skipped entirely. Image bytes
// carry no promptable text.
func IsImage(file File) bool {
	return strings.HasPrefix(file.MIMEType, "image/")
}

// Text returns the promptable text of one file. HTML is converted to
// Markdown so markup noise does not eat token budget; anything else passes
// through as-is. Conversion failures fall back to the raw content rather
// than dropping the file.
func Text(file File) string {
	if isHTML(file) {
		markdown, err := htmltomarkdown.ConvertString(file.Content)
		if err == nil {
			return markdown
		}
	}
	return file.Content
}

func isHTML(file File) bool {
	if strings.Contains(file.MIMEType, "text/html") {
		return true
	}
	name := strings.ToLower(file.Name)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// AppendFileText returns prompt with the extracted text of every non-image
// file appended, each under a header naming the file. Image files are
// skipped. With no appendable files the prompt is returned unchanged.
func AppendFileText(prompt string, files []File) string {
	var out strings.Builder
	out.WriteString(prompt)

	for _, file := range files {
		if IsImage(file) {
			continue
		}
		text := strings.TrimSpace(Text(file))
		if text == "" {
			continue
		}
		fmt.Fprintf(&out, fileHeader, file.Name)
		out.WriteString(text)
	}

	return out.String()
}
