package domain

// UpdateMode — тег размеченного варианта обновления.
type UpdateMode int

const (
	// UpdateModeFull — PUT: все поля обязательны, для заказа набор позиций заменяется целиком.
	UpdateModeFull UpdateMode = iota + 1
	// UpdateModePartial — PATCH: применяются только переданные поля.
	UpdateModePartial
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateModeFull:
		return "full"
	case UpdateModePartial:
		return "partial"
	default:
		return "unknown"
	}
}
