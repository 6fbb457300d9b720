package probe

import (
	"fmt"

	"github.com/cilium/ebpf/btf"
)

// TaskOffsets holds the byte offsets of the task_struct fields the probe
// reads. Kernel struct layouts vary by build, so these are resolved against
// the running kernel's type information at load time and never hard-coded.
type TaskOffsets struct {
	RealParent uint32 // struct task_struct *real_parent
	Tgid       uint32 // pid_t tgid
}

// ResolveTaskOffsets looks up task_struct.real_parent and task_struct.tgid
// in the given BTF spec. A missing struct or member fails resolution, which
// callers must treat as a load failure: attaching with guessed offsets would
// read the wrong memory on every event.
func ResolveTaskOffsets(spec *btf.Spec) (TaskOffsets, error) {
	var task *btf.Struct
	if err := spec.TypeByName("task_struct", &task); err != nil {
		return TaskOffsets{}, fmt.Errorf("resolve task_struct: %w", err)
	}

	var off TaskOffsets
	var haveParent, haveTgid bool
	for _, m := range task.Members {
		switch m.Name {
		case "real_parent":
			off.RealParent = uint32(m.Offset.Bytes())
			haveParent = true
		case "tgid":
			off.Tgid = uint32(m.Offset.Bytes())
			haveTgid = true
		}
	}
	if !haveParent {
		return TaskOffsets{}, fmt.Errorf("task_struct has no real_parent member")
	}
	if !haveTgid {
		return TaskOffsets{}, fmt.Errorf("task_struct has no tgid member")
	}
	return off, nil
}

// LoadTaskOffsets resolves the offsets against the running kernel.
func LoadTaskOffsets() (TaskOffsets, error) {
	spec, err := btf.LoadKernelSpec()
	if err != nil {
		return TaskOffsets{}, fmt.Errorf("load kernel BTF: %w", err)
	}
	return ResolveTaskOffsets(spec)
}
