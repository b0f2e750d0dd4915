package outbox

const resultChangedSchema = `{
  "type": "object",
  "title": "ResultChanged",
  "properties": {
    "result_id": {"type": "string"},
    "user_name": {"type": "string"},
    "activity": {"type": "string"},
    "value": {"type": "number"},
    "occurred_at": {"type": "string", "format": "date-time"},
    "version": {"type": "string"}
  },
  "required": ["result_id", "user_name", "activity", "occurred_at", "version"],
  "additionalProperties": false
}`

const activityRenamedSchema = `{
  "type": "object",
  "title": "ActivityRenamed",
  "properties": {
    "from": {"type": "string"},
    "to": {"type": "string"},
    "results": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["from", "to", "results", "occurred_at"],
  "additionalProperties": false
}`

const activitiesConfiguredSchema = `{
  "type": "object",
  "title": "ActivitiesConfigured",
  "properties": {
    "list": {"type": "array", "items": {"type": "string"}},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["list", "occurred_at"],
  "additionalProperties": false
}`

const rosterChangedSchema = `{
  "type": "object",
  "title": "RosterChanged",
  "properties": {
    "user_id": {"type": "string"},
    "full_name": {"type": "string"},
    "change": {"type": "string", "enum": ["added", "removed"]},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "full_name", "change", "occurred_at"],
  "additionalProperties": false
}`
