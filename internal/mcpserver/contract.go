package mcpserver

// BackupFormatContract describes the canonical backup document format that
// LLM consumers should follow when constructing or editing workspace backups.
const BackupFormatContract = `# Arbor Backup Document Contract

Every workspace backup exported or imported by Arbor MUST follow this
JSON structure.

## Structure

` + "```" + `json
{
  "version": 2,
  "exportedAt": "2026-08-29T12:00:00Z",
  "description": "Workspace organizer backup",
  "notebookId": "abc123",
  "source": {
    "folders": [
      {"id": "uuid", "name": "Research", "parentId": "", "isOpen": true, "order": 0, "color": "#4285f4"}
    ],
    "mappings": {"normalized item title": "folder-uuid"},
    "pinned": {"normalized item title": true}
  },
  "studio": { "folders": [], "mappings": {}, "pinned": {} },
  "settings": {
    "showGenerators": true,
    "showResearch": true,
    "focusMode": false,
    "tasksOpen": true,
    "completedOpen": false
  },
  "tasks": {
    "tasks": [
      {"id": "uuid", "text": "Re-read chapter 4", "done": false, "priority": 1}
    ],
    "sections": [
      {"id": "uuid", "name": "This week", "isOpen": true, "order": 0, "color": "#fbbc04"}
    ]
  }
}
` + "```" + `

## Rules

1. **` + "`" + `source` + "`" + ` and ` + "`" + `studio` + "`" + ` panels are required.** Every other field is
   optional; older exports without tasks or settings still import.
2. **Folder names** are non-empty strings. Every folder needs an ` + "`" + `id` + "`" + `;
   ` + "`" + `parentId` + "`" + ` empty or absent means a root folder.
3. **Mapping and pin keys** are normalized item titles: lowercased, with
   runs of whitespace collapsed to single spaces and trimmed. A mapping
   that names a folder id absent from the same panel's folder list is
   dropped on import.
4. **Task priority** is 0 (none), 1 (high), 2 (medium) or 3 (low).
5. **Importing replaces** the workspace's folders, mappings, pins,
   settings and tasks wholesale. There is no merge.
6. **Encoding** is UTF-8 JSON.
`
