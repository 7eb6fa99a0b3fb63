package cache

import "time"

// Key prefixes. Keys follow {entity-type}:{sub-resource?}:{id} so that they
// are deterministic and collision-free across entity namespaces.
const (
	restaurantPrefix         = "restaurant:"
	restaurantMenuPrefix     = "restaurant:menu:"
	foodItemPrefix           = "fooditem:"
	orderPrefix              = "order:"
	driverLocationPrefix     = "driver:location:"
	driverAvailabilityPrefix = "driver:availability:"
	userOrdersPrefix         = "user:orders:"
)

// Default TTLs for entries not covered by config (driver telemetry is
// short-lived by nature).
const (
	DriverLocationTTL     = 5 * time.Minute
	DriverAvailabilityTTL = time.Minute
	OrderTTL              = 10 * time.Minute
)

// RestaurantKey builds the cache key for a restaurant profile projection.
func RestaurantKey(restaurantID string) string { return restaurantPrefix + restaurantID }

// RestaurantMenuKey builds the cache key for a restaurant's full menu. This
// is the key invalidated unconditionally by every catalog item write.
func RestaurantMenuKey(restaurantID string) string { return restaurantMenuPrefix + restaurantID }

// FoodItemKey builds the cache key for a single catalog item projection.
func FoodItemKey(foodItemID string) string { return foodItemPrefix + foodItemID }

// OrderKey builds the cache key for an order projection.
func OrderKey(orderID string) string { return orderPrefix + orderID }

// DriverLocationKey builds the cache key for a driver's last known position.
func DriverLocationKey(driverID string) string { return driverLocationPrefix + driverID }

// DriverAvailabilityKey builds the cache key for a driver's availability flag.
func DriverAvailabilityKey(driverID string) string { return driverAvailabilityPrefix + driverID }

// UserOrdersKey builds the cache key for a user's order list projection.
func UserOrdersKey(userID string) string { return userOrdersPrefix + userID }
