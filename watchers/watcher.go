package watchers

// LifecycleEvent is an external trigger for a watcher pass.
type LifecycleEvent string

// EventStart and EventResume are activations: the permission status is
// re-checked. EventRefresh only re-scans while access is already granted.
const EventStart LifecycleEvent = "start"
const EventResume LifecycleEvent = "resume"
const EventRefresh LifecycleEvent = "refresh"

