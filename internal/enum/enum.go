package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	ComandaStatusAberta  = "aberta"
	ComandaStatusFechada = "fechada"
)

const (
	ItemStatusPending    = "pending"
	ItemStatusQueued     = "queued"
	ItemStatusInProgress = "in_progress"
	ItemStatusDone       = "done"
	ItemStatusCanceled   = "canceled"
)

// ── Group B: Routing / payment labels (CHECK constrained in DB) ──

const (
	DestinoKitchen = "kitchen"
	DestinoBar     = "bar"
	DestinoNone    = "none"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodPix  = "pix"
	PaymentMethodCard = "card"
)

// ── Group C: Access control ──

const (
	UserRoleOwner   = "owner"
	UserRoleManager = "manager"
	UserRoleCashier = "cashier"
	UserRoleKitchen = "kitchen"
)

const (
	PlanTrial  = "trial"
	PlanMensal = "mensal"
	PlanAnual  = "anual"
)
