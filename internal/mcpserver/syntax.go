package mcpserver

// TemplateSyntax documents the display template language accepted by the
// render_record tool and the display section of the configuration.
const TemplateSyntax = `# bibkit Template Syntax

A template is literal text interleaved with field references.

` + "```" + `
${author editor:30%sn}  ${year date:4}  ${title:*}
` + "```" + `

## Field references

- ` + "`${name}`" + ` renders the field at its natural width.
- ` + "`${name:N}`" + ` pads or truncates the value to N columns, 1 to 1000.
- ` + "`${name:*}`" + ` takes a share of the width left after literals and sized fields.
  Several star fields split the leftover evenly; the earliest ones get the remainder.
- ` + "`${a b c:N}`" + ` is an alias chain: the first non-empty field wins.
- ` + "`%transform`" + ` after the width (or after the names) applies one named transform.
- ` + "`=key=`" + ` and ` + "`=type=`" + ` resolve to the citation key and the entry type.

Widths are display columns, so wide characters count twice. Truncated values end
with the configured ellipsis.

## Transforms

| Name | Effect |
|------|--------|
| clean | strip braces and collapse whitespace |
| sn, shorten-names | keep family names of an "and"-separated list |
| etal | at most three family names, then "et al." |
| year | first run of four digits |
| upcase, downcase | change case |

## Examples

` + "```" + `
${=key=:16} ${title:*}
${author:20%etal} (${year}) ${title:*}
${=type=:8}${journal booktitle publisher:*}
` + "```" + `
`
