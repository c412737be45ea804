package lb

// ProvisioningStatus is the lifecycle state of a resource's control-plane
// configuration.
type ProvisioningStatus string

const (
	StatusPendingCreate ProvisioningStatus = "PENDING_CREATE"
	StatusPendingUpdate ProvisioningStatus = "PENDING_UPDATE"
	StatusPendingDelete ProvisioningStatus = "PENDING_DELETE"
	StatusActive        ProvisioningStatus = "ACTIVE"
	StatusError         ProvisioningStatus = "ERROR"
	StatusDeleted       ProvisioningStatus = "DELETED"

	// StatusDeferred marks an l7 rule or policy that is not yet attached to
	// a load balancer, so no driver call was issued for it.
	StatusDeferred ProvisioningStatus = "DEFERRED"
)

// Pending returns true while an operation is in flight for the resource.
func (s ProvisioningStatus) Pending() bool {
	switch s {
	case StatusPendingCreate, StatusPendingUpdate, StatusPendingDelete:
		return true
	default:
		return false
	}
}

// OperatingStatus is the observed runtime health of a resource.
type OperatingStatus string

const (
	OperatingOnline    OperatingStatus = "ONLINE"
	OperatingOffline   OperatingStatus = "OFFLINE"
	OperatingDegraded  OperatingStatus = "DEGRADED"
	OperatingDisabled  OperatingStatus = "DISABLED"
	OperatingNoMonitor OperatingStatus = "NO_MONITOR"
)

// ResourceType discriminates rows in the status store and driver manager
// selection in the dispatcher.
type ResourceType string

const (
	ResourceLoadBalancer  ResourceType = "loadbalancer"
	ResourceListener      ResourceType = "listener"
	ResourcePool          ResourceType = "pool"
	ResourceMember        ResourceType = "member"
	ResourceHealthMonitor ResourceType = "healthmonitor"
	ResourceL7Policy      ResourceType = "l7policy"
	ResourceL7Rule        ResourceType = "l7rule"
)
