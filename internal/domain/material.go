package domain

import "fmt"

// MaterialKind тип справочника материалов.
type MaterialKind string

const (
	MaterialKindMaterial      MaterialKind = "material"
	MaterialKindColor         MaterialKind = "color"
	MaterialKindSurfaceFinish MaterialKind = "surfaceFinish"
)

// MaterialKinds все поддерживаемые справочники.
func MaterialKinds() []MaterialKind {
	return []MaterialKind{MaterialKindMaterial, MaterialKindColor, MaterialKindSurfaceFinish}
}

// MaterialKey ключ записи справочника.
type MaterialKey struct {
	Kind MaterialKind
	ID   int
}

func (k MaterialKey) String() string {
	return fmt.Sprintf("%s:%d", k.Kind, k.ID)
}
