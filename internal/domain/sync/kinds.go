package sync

// ---------------------------------------------------------------------------
// EntityKind
// ---------------------------------------------------------------------------

// EntityKind identifies which domain entity a sync operates on
type EntityKind string

const (
	// EntityKindProduct represents catalog products
	EntityKindProduct EntityKind = "product"
	// EntityKindInventory represents warehouse inventory levels
	EntityKindInventory EntityKind = "inventory"
	// EntityKindCustomer represents customer records
	EntityKindCustomer EntityKind = "customer"
	// EntityKindOrder represents sales orders
	EntityKindOrder EntityKind = "order"
	// EntityKindPrice represents price list entries
	EntityKindPrice EntityKind = "price"
)

// IsValid returns true if the entity kind is valid
func (k EntityKind) IsValid() bool {
	switch k {
	case EntityKindProduct, EntityKindInventory, EntityKindCustomer,
		EntityKindOrder, EntityKindPrice:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityKind
func (k EntityKind) String() string {
	return string(k)
}

// AllEntityKinds returns every supported entity kind
func AllEntityKinds() []EntityKind {
	return []EntityKind{
		EntityKindProduct,
		EntityKindInventory,
		EntityKindCustomer,
		EntityKindOrder,
		EntityKindPrice,
	}
}

// ---------------------------------------------------------------------------
// SystemCode
// ---------------------------------------------------------------------------

// SystemCode identifies a data source or target system
type SystemCode string

const (
	// SystemCodeInternal is the internal store of record
	SystemCodeInternal SystemCode = "INTERNAL"
	// SystemCodeShopify represents a Shopify storefront
	SystemCodeShopify SystemCode = "SHOPIFY"
	// SystemCodeMagento represents a Magento storefront
	SystemCodeMagento SystemCode = "MAGENTO"
	// SystemCodeNetSuite represents a NetSuite ERP instance
	SystemCodeNetSuite SystemCode = "NETSUITE"
)

// IsValid returns true if the system code is valid
func (c SystemCode) IsValid() bool {
	switch c {
	case SystemCodeInternal, SystemCodeShopify, SystemCodeMagento, SystemCodeNetSuite:
		return true
	default:
		return false
	}
}

// IsExternal returns true if the system is an external platform
func (c SystemCode) IsExternal() bool {
	return c.IsValid() && c != SystemCodeInternal
}

// String returns the string representation of SystemCode
func (c SystemCode) String() string {
	return string(c)
}

// MasterDataPrecedence returns the fixed precedence list used by the
// master-data resolution strategy: ERP systems rank before storefronts.
func MasterDataPrecedence() []SystemCode {
	return []SystemCode{
		SystemCodeNetSuite,
		SystemCodeInternal,
		SystemCodeMagento,
		SystemCodeShopify,
	}
}

// ---------------------------------------------------------------------------
// SyncDirection
// ---------------------------------------------------------------------------

// SyncDirection indicates which side of a sync is the source
type SyncDirection string

const (
	// DirectionPull syncs external platform data into the internal store
	DirectionPull SyncDirection = "pull"
	// DirectionPush syncs internal store data out to an external platform
	DirectionPush SyncDirection = "push"
)

// IsValid returns true if the direction is valid
func (d SyncDirection) IsValid() bool {
	return d == DirectionPull || d == DirectionPush
}

// String returns the string representation of SyncDirection
func (d SyncDirection) String() string {
	return string(d)
}
