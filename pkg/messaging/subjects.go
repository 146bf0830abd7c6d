package messaging

const (
	ProductsSubjects       = "products.>"
	ProductsCreatedSubject = "products.created"
	ProductsUpdatedSubject = "products.updated"
	ProductsDeletedSubject = "products.deleted"
)
