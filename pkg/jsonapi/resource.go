package jsonapi

// ResourceBuilder assembles a resource object.
type ResourceBuilder struct {
	res Resource
}

// NewResource starts a resource of the given type and id.
func NewResource(typ, id string) *ResourceBuilder {
	return &ResourceBuilder{res: Resource{Type: typ, ID: id, Attributes: map[string]any{}}}
}

// Attr sets an attribute.
func (b *ResourceBuilder) Attr(key string, value any) *ResourceBuilder {
	b.res.Attributes[key] = value
	return b
}

// Meta sets a meta member.
func (b *ResourceBuilder) Meta(key string, value any) *ResourceBuilder {
	if b.res.Meta == nil {
		b.res.Meta = Meta{}
	}
	b.res.Meta[key] = value
	return b
}

// Self sets the canonical URL of the resource. Empty leaves links unset.
func (b *ResourceBuilder) Self(href string) *ResourceBuilder {
	if href != "" {
		b.res.Links = &Links{Self: href}
	}
	return b
}

func (b *ResourceBuilder) Build() Resource {
	return b.res
}
