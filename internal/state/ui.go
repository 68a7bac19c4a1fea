package state

import "time"

// ToastKind classifies a transient user-facing message.
type ToastKind int

const (
	ToastInfo ToastKind = iota
	ToastError
)

// Toast is a transient message shown to the user, e.g. after a failed
// network call was rolled back.
type Toast struct {
	ID        string
	Kind      ToastKind
	Text      string
	ExpiresAt time.Time
}

// FieldErrors maps a form field to its validation message.
type FieldErrors map[string]string

// UIState holds presentation-level feedback produced by the sync layer.
type UIState struct {
	Toasts []Toast

	// FieldErrors holds validation failures keyed by form name.
	FieldErrors map[string]FieldErrors
}

// UIAction is the closed set of UI feedback transitions.
type UIAction interface {
	uiAction()
}

// ShowToast appends a toast.
type ShowToast struct {
	Toast Toast
}

// DismissToast removes a toast by ID.
type DismissToast struct {
	ID string
}

// ExpireToasts drops every toast whose deadline is not after Now.
type ExpireToasts struct {
	Now time.Time
}

// SetFieldErrors records validation errors for a form. A nil Errors
// clears the form.
type SetFieldErrors struct {
	Form   string
	Errors FieldErrors
}

func (ShowToast) uiAction()      {}
func (DismissToast) uiAction()   {}
func (ExpireToasts) uiAction()   {}
func (SetFieldErrors) uiAction() {}

// ReduceUI is the UI feedback reducer.
func ReduceUI(s UIState, a UIAction) UIState {
	switch a := a.(type) {
	case ShowToast:
		s.Toasts = append(append([]Toast(nil), s.Toasts...), a.Toast)
		return s

	case DismissToast:
		return filterToasts(s, func(t Toast) bool { return t.ID != a.ID })

	case ExpireToasts:
		return filterToasts(s, func(t Toast) bool { return t.ExpiresAt.After(a.Now) })

	case SetFieldErrors:
		forms := make(map[string]FieldErrors, len(s.FieldErrors)+1)
		for k, v := range s.FieldErrors {
			forms[k] = v
		}
		if len(a.Errors) == 0 {
			delete(forms, a.Form)
		} else {
			forms[a.Form] = a.Errors
		}
		s.FieldErrors = forms
		return s
	}
	return s
}

func filterToasts(s UIState, keep func(Toast) bool) UIState {
	toasts := make([]Toast, 0, len(s.Toasts))
	for _, t := range s.Toasts {
		if keep(t) {
			toasts = append(toasts, t)
		}
	}
	if len(toasts) == len(s.Toasts) {
		return s
	}
	s.Toasts = toasts
	return s
}
