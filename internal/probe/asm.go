package probe

import (
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/asm"
)

// EventsMapName is the perf event array the probe publishes into. The
// loader creates it alongside the program; the consumer polls it.
const EventsMapName = "events"

// bpfFCurrentCPU tags a perf output for whichever CPU is executing.
const bpfFCurrentCPU = 0xFFFFFFFF

// Stack frame of the probe. The record sits at the bottom; one 8-byte
// scratch slot above it holds the parent task pointer between the two
// probe-read hops. The frame is fixed-size: the verifier cannot reason
// about dynamic allocation.
const (
	recOff      = -int16(RecordSize)      // record base (fp-280)
	pidOff      = recOff                  // u32 pid
	ppidOff     = recOff + 4              // u32 ppid
	commOff     = recOff + 8              // char[16] comm
	filenameOff = recOff + 8 + TaskCommLen // char[256] filename
	scratchOff  = recOff - 8              // struct task_struct *parent
)

// EventsMapSpec returns the spec for the per-CPU broadcast channel: a perf
// event array with 4-byte keys (CPU index) and 4-byte values. Max entries
// is left zero so it is sized to the number of possible CPUs at creation.
func EventsMapSpec() *ebpf.MapSpec {
	return &ebpf.MapSpec{
		Name:      EventsMapName,
		Type:      ebpf.PerfEventArray,
		KeySize:   4,
		ValueSize: 4,
	}
}

// ExecProgramSpec assembles the tracepoint program for
// sched:sched_process_exec. The instruction stream is branchless and mirrors
// HandleExec step for step; off carries the task_struct offsets resolved at
// load time. Every kernel read goes through a probe-read helper, which
// zero-fills its destination instead of faulting, so a failed read degrades
// the field to zero.
func ExecProgramSpec(off TaskOffsets) *ebpf.ProgramSpec {
	insns := asm.Instructions{
		// r6 = ctx
		asm.Mov.Reg(asm.R6, asm.R1),
	}

	// Zero the record and the scratch slot.
	for o := scratchOff; o < 0; o += 8 {
		insns = append(insns, asm.StoreImm(asm.RFP, o, 0, asm.DWord))
	}

	insns = append(insns,
		// pid = get_current_pid_tgid() >> 32
		asm.FnGetCurrentPidTgid.Call(),
		asm.RSh.Imm(asm.R0, 32),
		asm.StoreMem(asm.RFP, pidOff, asm.R0, asm.Word),

		// r7 = current task
		asm.FnGetCurrentTask.Call(),
		asm.Mov.Reg(asm.R7, asm.R0),

		// probe_read_kernel(&scratch, 8, &task->real_parent)
		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, int32(scratchOff)),
		asm.Mov.Imm(asm.R2, 8),
		asm.Mov.Reg(asm.R3, asm.R7),
		asm.Add.Imm(asm.R3, int32(off.RealParent)),
		asm.FnProbeReadKernel.Call(),

		// probe_read_kernel(&rec.ppid, 4, &parent->tgid)
		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, int32(ppidOff)),
		asm.Mov.Imm(asm.R2, 4),
		asm.LoadMem(asm.R3, asm.RFP, scratchOff, asm.DWord),
		asm.Add.Imm(asm.R3, int32(off.Tgid)),
		asm.FnProbeReadKernel.Call(),

		// get_current_comm(&rec.comm, 16)
		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, int32(commOff)),
		asm.Mov.Imm(asm.R2, TaskCommLen),
		asm.FnGetCurrentComm.Call(),

		// r3 = ctx + (data_loc & 0xFFFF)
		asm.LoadMem(asm.R4, asm.R6, filenameLocOffset, asm.Word),
		asm.And.Imm(asm.R4, 0xFFFF),
		asm.Mov.Reg(asm.R3, asm.R6),
		asm.Add.Reg(asm.R3, asm.R4),

		// probe_read_kernel_str(&rec.filename, 256, r3)
		asm.Mov.Reg(asm.R1, asm.RFP),
		asm.Add.Imm(asm.R1, int32(filenameOff)),
		asm.Mov.Imm(asm.R2, FilenameLen),
		asm.FnProbeReadKernelStr.Call(),

		// perf_event_output(ctx, &events, BPF_F_CURRENT_CPU, &rec, 280)
		asm.Mov.Reg(asm.R1, asm.R6),
		asm.LoadMapPtr(asm.R2, 0).WithReference(EventsMapName),
		asm.LoadImm(asm.R3, bpfFCurrentCPU, asm.DWord),
		asm.Mov.Reg(asm.R4, asm.RFP),
		asm.Add.Imm(asm.R4, int32(recOff)),
		asm.Mov.Imm(asm.R5, RecordSize),
		asm.FnPerfEventOutput.Call(),

		// Return value is diagnostic only.
		asm.Mov.Imm(asm.R0, 0),
		asm.Return(),
	)

	return &ebpf.ProgramSpec{
		Name:         "trace_exec",
		Type:         ebpf.TracePoint,
		License:      "GPL",
		Instructions: insns,
	}
}

// CollectionSpec bundles the program and its events map for loading.
func CollectionSpec(off TaskOffsets) *ebpf.CollectionSpec {
	return &ebpf.CollectionSpec{
		Maps: map[string]*ebpf.MapSpec{
			EventsMapName: EventsMapSpec(),
		},
		Programs: map[string]*ebpf.ProgramSpec{
			"trace_exec": ExecProgramSpec(off),
		},
	}
}
