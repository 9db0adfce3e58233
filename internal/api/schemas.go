package api

const customerSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["code", "name", "national_id"],
  "properties": {
    "code": {"type": "string", "minLength": 1, "maxLength": 50},
    "name": {"type": "string", "minLength": 1, "maxLength": 255},
    "gender": {"type": "string", "maxLength": 20},
    "age": {"type": "integer", "minimum": 0, "maximum": 150},
    "national_id": {"type": "string", "minLength": 1, "maxLength": 50},
    "address": {"type": "string", "maxLength": 255},
    "phone": {"type": "string", "maxLength": 50},
    "active": {"type": "boolean"}
  }
}`

const openAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["number", "type", "customer_id"],
  "properties": {
    "number": {"type": "string", "minLength": 1, "maxLength": 50},
    "type": {"type": "string", "enum": ["SAVINGS", "CHECKING"]},
    "customer_id": {"type": "string", "minLength": 1},
    "initial_deposit": {"type": "number", "minimum": 0}
  }
}`

const updateAccountSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["number", "type"],
  "properties": {
    "number": {"type": "string", "minLength": 1, "maxLength": 50},
    "type": {"type": "string", "enum": ["SAVINGS", "CHECKING"]},
    "active": {"type": "boolean"}
  }
}`

const movementSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["account_id", "amount"],
  "properties": {
    "account_id": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "memo": {"type": "string", "maxLength": 255}
  }
}`

const transferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["source_account_id", "destination_account_id", "amount"],
  "properties": {
    "source_account_id": {"type": "string", "minLength": 1},
    "destination_account_id": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "exclusiveMinimum": 0},
    "memo": {"type": "string", "maxLength": 255}
  }
}`
