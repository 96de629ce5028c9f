package env

import (
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
)

// NodeID returns the default node id: a hash of the machine id, so the
// raw id is never published. It falls back to "micon" when the machine id
// is not available.
func NodeID() string {
	id, err := machineid.ProtectedID("micon")
	if err != nil {
		glog.V(2).Infof("machine id: %v", err)
		return "micon"
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
