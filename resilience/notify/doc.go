// Package notify dispatches notifications across independently breakered
// channels.
//
// Each channel gets its own circuit breaker (notification_channel_<name>)
// with a tolerant configuration and no retry: a notification is sent once or
// fails, and one channel's outage never blocks delivery on the others.
package notify
