// Package engine is the composition root that assembles the model, the tool
// registry and the stores from configuration and exposes them through a
// frontend-agnostic API. Frontends interact with Engine and Session types and
// observe activity through an EventBus.
package engine
