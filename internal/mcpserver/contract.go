package mcpserver

// ContentFormatContract describes the site document and how its fields are
// addressed, for LLM clients editing content through the tools.
const ContentFormatContract = `# Site Content Format

The site is one JSON document:

` + "```" + `json
{"pages": [
  {"id": "home", "title": "Home", "sections": [
    {"id": "hero", "title": "Hero", "content": {
      "headline": {"kind": "text", "title": "Headline", "value": "Welcome"}
    }}
  ]}
]}
` + "```" + `

## Fields

An object with a string ` + "`kind`" + ` member is a field. Its ` + "`value`" + ` is what the
visitor sees; every other member is metadata and must be left alone.

| kind | value |
|---|---|
| text | string, one line |
| texteditor | string, multi-line |
| url | string |
| image | URL string, empty when unset |
| number | number |
| boolean | true or false |
| array | list of fields or field groups |
| object | nested fields |

Objects without ` + "`kind`" + ` group their members.

## Paths

A path is a JSON array of keys and indices from the document root, e.g.
` + "`" + `["pages",0,"sections",0,"content","headline","value"]` + "`" + `.
Use the paths returned by ` + "`get_section`" + `; do not build them by hand.

## Rules

1. ` + "`set_value`" + ` takes the value as a string; numbers and booleans are
   converted according to the field kind.
2. ` + "`append_item`" + ` adds a copy of the first list element with its values cleared.
3. Images are set with ` + "`upload_image`" + `, never by writing a URL you invented.
4. Nothing reaches the live site until ` + "`save_content`" + ` succeeds.
`
