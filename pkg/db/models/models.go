package models

// All lists every persisted model in dependency order. It drives AutoMigrate
// for the SQLite dev mode and test databases.
func All() []any {
	return []any{
		&Customer{},
		&CatalogItem{},
		&Subscription{},
		&InvoiceSequence{},
		&Invoice{},
		&InvoiceLineItem{},
		&LedgerEntry{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
