package statestore

// snapshotSchema rejects truncated or hand-mangled snapshot files before
// unmarshalling. It checks structure, not business rules; those are enforced
// by the ledger itself.
const snapshotSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "saved_at", "ledger"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "saved_at": {"type": "string"},
    "ledger": {
      "type": "object",
      "required": ["symbol", "position", "quote_balance", "base_balance"],
      "properties": {
        "symbol": {"type": "string", "minLength": 1},
        "grid_orders": {"type": "array", "items": {"$ref": "#/$defs/order"}},
        "take_profit": {"$ref": "#/$defs/order"},
        "cascade": {"$ref": "#/$defs/order"},
        "position": {
          "type": "object",
          "required": ["quantity", "entry_price"],
          "properties": {
            "quantity": {"type": "number", "minimum": 0},
            "entry_price": {"type": "number", "minimum": 0},
            "entry_time": {"type": "string"}
          }
        },
        "quote_balance": {"type": "number"},
        "base_balance": {"type": "number"}
      }
    }
  },
  "$defs": {
    "order": {
      "type": "object",
      "required": ["kind", "side", "price", "quantity", "client_id", "status"],
      "properties": {
        "kind": {"enum": ["grid", "take_profit", "cascade"]},
        "side": {"enum": ["BUY", "SELL"]},
        "price": {"type": "number", "exclusiveMinimum": 0},
        "quantity": {"type": "number", "exclusiveMinimum": 0},
        "client_id": {"type": "string", "minLength": 1, "maxLength": 36},
        "exchange_id": {"type": "string"},
        "status": {
          "enum": [
            "NEW", "PARTIALLY_FILLED", "FILLED",
            "CANCELED", "EXPIRED", "REJECTED", "UNKNOWN"
          ]
        }
      }
    }
  }
}`
