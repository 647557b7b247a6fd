package models

import (
	"reflect"
	"sync"
)

// Capabilities describes which facets a model type carries. The pipeline
// consults it instead of probing interfaces on every statement.
type Capabilities struct {
	CreationAudit     bool
	ModificationAudit bool
	Concurrency       bool
	SoftDelete        bool
	MultiTenant       bool
}

var capabilityCache sync.Map // reflect.Type -> Capabilities

// CapabilitiesOf returns the facet set of a model type. Results are
// cached per type; the probe itself runs once.
func CapabilitiesOf(t reflect.Type) Capabilities {
	for t != nil && (t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Capabilities{}
	}

	if cached, ok := capabilityCache.Load(t); ok {
		return cached.(Capabilities)
	}

	probe := reflect.New(t).Interface()
	caps := Capabilities{}
	_, caps.CreationAudit = probe.(CreationAudited)
	_, caps.ModificationAudit = probe.(ModificationAudited)
	_, caps.Concurrency = probe.(ConcurrencyStamped)
	_, caps.SoftDelete = probe.(SoftDeletable)
	_, caps.MultiTenant = probe.(MultiTenant)

	capabilityCache.Store(t, caps)
	return caps
}
