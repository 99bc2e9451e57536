// Package factorydata manages device factory data: the canonical record of
// each manufactured unit, its append-only history, and the workflows that
// provision, update and decommission vehicles.
//
// Key types:
//   - DeviceFactoryData: one manufactured unit (identifiers, metadata, state)
//   - HistoryEntry: an immutable snapshot taken on every state change
//   - Validator: request checks, including per device type mandatory fields
//   - SQLiteRepository: persistence and the filtered read side
//   - Service: validate, persist, then mirror into SWM
//
// Records start PROVISIONED and are never deleted. DeleteVehicle moves a
// record to DECOMMISSIONED and records it in history.
//
// Request-supplied column names never reach SQL directly. Search inputs are
// keyed by InputType, and sort, like and range fields are checked against
// fixed allow-lists before the querybuilder package formats them.
package factorydata
