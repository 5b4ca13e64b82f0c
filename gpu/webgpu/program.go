package webgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/mreinstein/cobalt-bloom/gpu"
)

type UniformKind int

const (
	UniformFloat UniformKind = iota
	UniformInt
)

// Uniform is one 4-byte field of the uniform struct at binding 0.
type Uniform struct {
	Name string
	Kind UniformKind
}

// ProgramDesc describes a WGSL program. Uniforms are packed in order into
// the struct at @group(0) @binding(0). Sampler i is bound as a texture at
// binding 1+2i and its sampler at 2+2i, fed from the texture unit held in
// the int uniform of the same name.
type ProgramDesc struct {
	Label    string
	WGSL     string
	Uniforms []Uniform
	Samplers []string
}

// pipelineKey is everything a render pipeline bakes in that the bind-and-draw
// model treats as dynamic state.
type pipelineKey struct {
	targets   string
	depth     bool
	depthTest bool
	layout    gpu.VertexLayout
	mode      gpu.Primitive
}

// Program is a gpu.Program compiled for one Device. Render pipelines are
// created on first use for each target configuration.
type Program struct {
	gpu.Uniforms
	desc ProgramDesc

	module          *wgpu.ShaderModule
	bindGroupLayout *wgpu.BindGroupLayout
	pipelineLayout  *wgpu.PipelineLayout
	pipelines       map[pipelineKey]*wgpu.RenderPipeline
}

func (p *Program) Label() string { return p.desc.Label }

// NewProgram compiles desc on d. The program lives until d is released.
func (d *Device) NewProgram(desc ProgramDesc) (*Program, error) {
	if len(desc.Uniforms) == 0 {
		return nil, errors.New("webgpu: program needs at least one uniform")
	}

	names := make([]string, 0, len(desc.Uniforms)+len(desc.Samplers))
	for _, u := range desc.Uniforms {
		names = append(names, u.Name)
	}
	names = append(names, desc.Samplers...)

	p := &Program{
		Uniforms:  gpu.NewUniforms(names...),
		desc:      desc,
		pipelines: make(map[pipelineKey]*wgpu.RenderPipeline),
	}
	for i, s := range desc.Samplers {
		p.SetInt(s, int32(i))
	}

	entries := []wgpu.BindGroupLayoutEntry{
		{
			Binding:    0,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: false,
				MinBindingSize:   0,
			},
		},
	}
	for i := range desc.Samplers {
		entries = append(entries,
			wgpu.BindGroupLayoutEntry{
				Binding:    uint32(1 + 2*i),
				Visibility: wgpu.ShaderStageFragment,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
					Multisampled:  false,
				},
			},
			wgpu.BindGroupLayoutEntry{
				Binding:    uint32(2 + 2*i),
				Visibility: wgpu.ShaderStageFragment,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
		)
	}

	var err error
	p.bindGroupLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}

	p.pipelineLayout, err = d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: []*wgpu.BindGroupLayout{p.bindGroupLayout},
	})
	if err != nil {
		p.release()
		return nil, err
	}

	p.module, err = d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: desc.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: desc.WGSL,
		},
	})
	if err != nil {
		gpu.Logger().Error("webgpu: shader compilation failed", "program", desc.Label, "err", err)
		p.release()
		return nil, err
	}

	d.programs = append(d.programs, p)
	return p, nil
}

// uniformBytes packs the current uniform values, padded to 16 bytes.
func (p *Program) uniformBytes() []byte {
	size := (len(p.desc.Uniforms)*4 + 15) / 16 * 16
	buf := make([]byte, size)
	for i, u := range p.desc.Uniforms {
		bits := math.Float32bits(p.Float(u.Name))
		if u.Kind == UniformInt {
			bits = uint32(p.Int(u.Name))
		}
		binary.LittleEndian.PutUint32(buf[i*4:], bits)
	}
	return buf
}

func formatKey(formats []wgpu.TextureFormat) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = fmt.Sprint(uint32(f))
	}
	return strings.Join(parts, ",")
}

func topology(mode gpu.Primitive) (wgpu.PrimitiveTopology, error) {
	switch mode {
	case gpu.TriangleList:
		return wgpu.PrimitiveTopologyTriangleList, nil
	case gpu.TriangleStrip:
		return wgpu.PrimitiveTopologyTriangleStrip, nil
	}
	return wgpu.PrimitiveTopologyTriangleList, fmt.Errorf("%w: primitive %d", gpu.ErrUnsupported, mode)
}

// pipeline returns the render pipeline for the given pass targets, creating
// it on first use.
func (p *Program) pipeline(d *Device, pt *passTargets, depthTest bool, layout gpu.VertexLayout, mode gpu.Primitive) (*wgpu.RenderPipeline, error) {
	key := pipelineKey{
		targets:   formatKey(pt.formats),
		depth:     pt.depth != nil,
		depthTest: depthTest,
		layout:    layout,
		mode:      mode,
	}
	if rp, ok := p.pipelines[key]; ok {
		return rp, nil
	}

	topo, err := topology(mode)
	if err != nil {
		return nil, err
	}

	targets := make([]wgpu.ColorTargetState, len(pt.formats))
	for i, f := range pt.formats {
		targets[i] = wgpu.ColorTargetState{
			Format:    f,
			WriteMask: wgpu.ColorWriteMaskAll,
		}
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  p.desc.Label,
		Layout: p.pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     p.module,
			EntryPoint: "vs_main",
			Buffers:    []wgpu.VertexBufferLayout{vertexLayout(layout)},
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topo,
			CullMode:  wgpu.CullModeNone,
			FrontFace: wgpu.FrontFaceCCW,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if pt.depth != nil {
		compare := wgpu.CompareFunctionLess
		if !depthTest {
			compare = wgpu.CompareFunctionAlways
		}
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth24Plus,
			DepthWriteEnabled: depthTest,
			DepthCompare:      compare,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	rp, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, err
	}
	p.pipelines[key] = rp

	gpu.Logger().Debug("webgpu: pipeline created", "program", p.desc.Label, "targets", key.targets, "depth", key.depth, "depth_test", depthTest)
	return rp, nil
}

func (p *Program) release() {
	for k, rp := range p.pipelines {
		rp.Release()
		delete(p.pipelines, k)
	}
	if p.module != nil {
		p.module.Release()
		p.module = nil
	}
	if p.pipelineLayout != nil {
		p.pipelineLayout.Release()
		p.pipelineLayout = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
}
