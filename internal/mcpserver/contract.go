package mcpserver

// StoryFormatContract describes the story file format read into the local
// catalog. LLM consumers drafting stories should follow it.
const StoryFormatContract = `# Heritage Story Format

Every story file in the content directory is Markdown with a YAML frontmatter
header. Only stories with status ` + "`approved`" + ` are shown to visitors; the
newest approved story (by ` + "`created`" + `) is the one the preview displays.

## Structure

` + "```" + `markdown
---
id: 7a1d2c1e-5b7f-4c1e-9a51-0b6f3f1f9c11   # OPTIONAL – stable id; derived from the path when absent
title: The Stone Guardian                  # OPTIONAL – falls back to the first "# " heading
author: Lakshmi                            # OPTIONAL – shown as "By <author>"
status: approved                           # pending (default) | approved | rejected
created: 2024-03-01T10:00:00Z              # OPTIONAL – RFC 3339, "2006-01-02 15:04:05" or a date
monument:                                  # OPTIONAL – the monument the story is about
  id: hampi
  title: Hampi
  location: Karnataka
  era: 14th century
---

The story body in Markdown.
` + "```" + `

## Rules

1. The ` + "`---`" + ` fences must be the first thing in the file.
2. Frontmatter keys are English; values and body may use any language, including Kannada.
3. A story may point at a monument declared in another file with ` + "`monument_id: <id>`" + `
   instead of an inline ` + "`monument`" + ` block.
4. Monument fields are each optional; missing ones are simply not shown.
5. File names end with ` + "`.md`" + `; hidden files and directories are ignored.
6. The whole body is narrated. Keep it plain prose; narration does not read Markdown markup.
`
