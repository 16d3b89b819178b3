package render

// LayerConfig controls which copper layers are drawn
type LayerConfig struct {
	visible map[string]bool
	hidden  bool // default for layers not in visible
}

// NewLayerConfig creates a configuration with every layer visible
func NewLayerConfig() *LayerConfig {
	return &LayerConfig{visible: make(map[string]bool)}
}

// SetVisible sets the visibility of a specific layer
func (lc *LayerConfig) SetVisible(layer string, visible bool) {
	lc.visible[layer] = visible
}

// IsVisible returns whether a layer is drawn. A nil configuration shows
// everything.
func (lc *LayerConfig) IsVisible(layer string) bool {
	if lc == nil {
		return true
	}
	if visible, exists := lc.visible[layer]; exists {
		return visible
	}
	return !lc.hidden
}

// ShowOnly shows only the specified layers, hiding all others
func (lc *LayerConfig) ShowOnly(layers ...string) {
	lc.visible = make(map[string]bool, len(layers))
	lc.hidden = true
	for _, layer := range layers {
		lc.visible[layer] = true
	}
}

// ShowAll shows all layers
func (lc *LayerConfig) ShowAll() {
	lc.visible = make(map[string]bool)
	lc.hidden = false
}
