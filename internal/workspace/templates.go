package workspace

import (
	"path"
	"strings"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>My Page</title>
    <link rel="stylesheet" href="style.css">
</head>
<body>
    <h1>Hello, World!</h1>
    <p>This is a sample HTML page.</p>
    <script src="script.js"></script>
</body>
</html>`

const cssTemplate = `/* Styles for the page */
body {
    font-family: Arial, sans-serif;
    margin: 0;
    padding: 20px;
    line-height: 1.6;
}

h1 {
    color: #333;
}`

const jsTemplate = `// JavaScript code
document.addEventListener('DOMContentLoaded', () => {
    console.log('Page loaded');
});`

const jsonTemplate = `{
    "name": "My Project",
    "version": "1.0.0",
    "description": "A sample project"
}`

const mdTemplate = `# My Project

## Introduction
This is a sample Markdown file.

## Features
- Feature 1
- Feature 2
- Feature 3`

// DefaultContent returns the starter content for a new file, chosen by extension.
func DefaultContent(name string) string {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "html":
		return htmlTemplate
	case "css":
		return cssTemplate
	case "js":
		return jsTemplate
	case "json":
		return jsonTemplate
	case "md":
		return mdTemplate
	}
	return ""
}
