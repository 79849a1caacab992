package mqtt

// Topic layout is per-entity so one broker serves many sites.
func EventCreateTopic(entityID string) string { return "local-events/" + entityID + "/create" }

func PendingEventsTopic(entityID string) string { return "pending-events/" + entityID + "/sync" }

func ParkingPushTopic(entityID string) string { return "local-parking/" + entityID + "/update" }

func ParkingInboundTopic(entityID string) string { return "parking/" + entityID + "/update" }
