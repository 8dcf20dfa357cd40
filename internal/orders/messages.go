package orders

import "golang.org/x/text/language"

// Customer-facing message codes. Codes are stable identifiers for the
// mobile client; the texts below are the server-side fallback rendering.
const (
	CodeSaleClosed         = "sale_closed"
	CodeDeliveryInProgress = "delivery_in_progress"
	CodeSaleCompleted      = "sale_completed"
	CodeOrderUpdated       = "order_updated"
	CodeOrderCleared       = "order_cleared"
	CodeInvalidToken       = "invalid_token"
	CodeSaleNotFound       = "sale_not_found"
	CodeSaleClosedNoModify = "sale_closed_no_modify"
	CodeProductNotFound    = "product_not_found"
	CodeDeliveryStarted    = "delivery_started"
	CodeNewSaleAvailable   = "new_sale_available"
)

// Spanish first: it is the app's primary audience and the fallback for
// unmatched Accept-Language values.
var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

var messages = map[string][2]string{
	CodeSaleClosed:         {"El pedido está cerrado", "Ordering is closed"},
	CodeDeliveryInProgress: {"El reparto está en curso", "Delivery is under way"},
	CodeSaleCompleted:      {"El reparto ha finalizado", "Delivery has finished"},
	CodeOrderUpdated:       {"Pedido actualizado", "Order updated"},
	CodeOrderCleared:       {"Pedido vaciado", "Order cleared"},
	CodeInvalidToken:       {"Enlace no válido", "Invalid link"},
	CodeSaleNotFound:       {"No hay ninguna venta activa", "No active sale"},
	CodeSaleClosedNoModify: {"El pedido está cerrado y ya no se puede modificar", "Ordering is closed and can no longer be changed"},
	CodeProductNotFound:    {"Producto no encontrado", "Product not found"},
	CodeDeliveryStarted:    {"¡El reparto ha comenzado!", "Delivery has started!"},
	CodeNewSaleAvailable:   {"Nueva venta disponible, haz tu pedido", "A new sale is open, place your order"},
}

// MatchLanguage picks the best supported language for an Accept-Language
// header. Empty or malformed headers fall back to Spanish.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return supported[0]
	}
	_, idx, _ := matcher.Match(tags...)
	return supported[idx]
}

// Message renders a code in the given language. Unknown codes render
// empty so a missing translation never leaks placeholder text.
func Message(code string, tag language.Tag) string {
	texts, ok := messages[code]
	if !ok {
		return ""
	}
	if tag == language.English {
		return texts[1]
	}
	return texts[0]
}
