package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Name     string
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Runtime Errors (E101-E119)
	// ============================================

	"E101": {
		Name:     "effect_update_depth_exceeded",
		Category: CategoryScheduler,
		Message:  "Maximum update depth exceeded",
		Detail:   "An effect keeps writing to state it also reads, so the scheduler never settles. The flush loop was aborted after the configured number of iterations.",
		DocURL:   "https://reactor.dev/docs/errors/E101",
	},
	"E102": {
		Name:     "state_unsafe_mutation",
		Category: CategoryMisuse,
		Message:  "Source written inside a computed",
		Detail:   "Computed bodies must be pure. Writing to a Source while a Computed is evaluating would make the graph inconsistent.",
		DocURL:   "https://reactor.dev/docs/errors/E102",
	},
	"E103": {
		Name:     "derived_references_self",
		Category: CategoryMisuse,
		Message:  "Computed references itself",
		Detail:   "A Computed read its own value while it was being evaluated.",
		DocURL:   "https://reactor.dev/docs/errors/E103",
	},
	"E104": {
		Name:     "effect_orphan",
		Category: CategoryMisuse,
		Message:  "Effect created outside a reactive scope",
		Detail:   "Effects must be created inside a root or another effect so they can be destroyed with their owner.",
		DocURL:   "https://reactor.dev/docs/errors/E104",
	},
	"E105": {
		Name:     "effect_in_computed",
		Category: CategoryMisuse,
		Message:  "Effect created inside a computed",
		Detail:   "Computed bodies cannot create effects.",
		DocURL:   "https://reactor.dev/docs/errors/E105",
	},
	"E106": {
		Name:     "reset_in_onerror",
		Category: CategoryMisuse,
		Message:  "Boundary reset called synchronously inside onerror",
		Detail:   "The failed content has not been created yet. Call reset from an event or a later microtask.",
		DocURL:   "https://reactor.dev/docs/errors/E106",
	},
	"E107": {
		Name:     "async_outside_effect",
		Category: CategoryMisuse,
		Message:  "Async value created outside an effect",
		Detail:   "Async values are bound to the lifetime of the effect that creates them.",
		DocURL:   "https://reactor.dev/docs/errors/E107",
	},
	"E108": {
		Name:     "effect_parent_destroyed",
		Category: CategoryMisuse,
		Message:  "Effect created under a destroyed parent",
		Detail:   "The parent effect has already been destroyed, so the new effect would never be cleaned up.",
		DocURL:   "https://reactor.dev/docs/errors/E108",
	},
	"E109": {
		Name:     "lifecycle_outside_reaction",
		Category: CategoryMisuse,
		Message:  "Lifecycle function called outside an effect",
		Detail:   "OnCleanup and similar functions attach to the currently running effect.",
		DocURL:   "https://reactor.dev/docs/errors/E109",
	},
	"E110": {
		Name:     "effect_kind_unsupported",
		Category: CategoryMisuse,
		Message:  "Effect kind cannot be created directly",
		Detail:   "Boundary and async effects are created by NewBoundary and NewAsync.",
		DocURL:   "https://reactor.dev/docs/errors/E110",
	},

	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Name:     "config_invalid",
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file could not be read or parsed.",
		DocURL:   "https://reactor.dev/docs/errors/E120",
	},
	"E121": {
		Name:     "config_not_found",
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No reactor.json, reactor.yaml, reactor.yml or reactor.toml was found.",
		DocURL:   "https://reactor.dev/docs/errors/E121",
	},
	"E122": {
		Name:     "config_value_invalid",
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration value is out of range.",
		DocURL:   "https://reactor.dev/docs/errors/E122",
	},

	// ============================================
	// CLI Errors (E140-E159)
	// ============================================

	"E140": {
		Name:     "unknown_demo",
		Category: CategoryCLI,
		Message:  "Unknown demo scenario",
		Detail:   "The requested demo does not exist.",
		DocURL:   "https://reactor.dev/docs/errors/E140",
	},
	"E141": {
		Name:     "unknown_code",
		Category: CategoryCLI,
		Message:  "Unknown diagnostic code",
		Detail:   "No diagnostic is registered under the given code or name.",
		DocURL:   "https://reactor.dev/docs/errors/E141",
	},

	// ============================================
	// Warnings (W201-W299)
	// ============================================

	"W201": {
		Name:     "boundary_reset_noop",
		Category: CategoryBoundary,
		Message:  "Boundary reset called more than once",
		Detail:   "A reset function can only be used once. Subsequent calls are ignored.",
		DocURL:   "https://reactor.dev/docs/errors/W201",
	},
	"W202": {
		Name:     "each_key_duplicate",
		Category: CategoryList,
		Message:  "Duplicate key in keyed list",
		Detail:   "Two items produced the same key. The first occurrence is kept and later duplicates are dropped.",
		DocURL:   "https://reactor.dev/docs/errors/W202",
	},
	"W203": {
		Name:     "flush_sync_in_effect",
		Category: CategoryScheduler,
		Message:  "FlushSync called inside an effect",
		Detail:   "Flushing synchronously while effects are running has no effect on the current flush.",
		DocURL:   "https://reactor.dev/docs/errors/W203",
	},
	"W204": {
		Name:     "dispatch_queue_full",
		Category: CategoryScheduler,
		Message:  "Dispatch queue full",
		Detail:   "A callback dispatched to the runtime loop was discarded because the queue is full.",
		DocURL:   "https://reactor.dev/docs/errors/W204",
	},
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Codes returns all registered codes.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}
