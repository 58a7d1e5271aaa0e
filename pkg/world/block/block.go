package block

import "fmt"

// Type is the stable tag identifying a kind of block. It is the value
// stored per cell in a chunk and in the chunk payload.
type Type uint8

const (
	Air Type = iota
	Stone
	Dirt
	Grass
	Sand
	Water
	OakLog
	OakLeaves
	CoalOre
	IronOre
	GoldOre
	DiamondOre
	Bedrock
	Gravel
	Cobblestone
	OakPlanks
	Glass
	Torch
	Glowstone
	Lava
	DoorClosed
	DoorOpen
)

// MaxLight is the highest value of either light channel.
const MaxLight = 15

// Drop is one entry of a block's drop table.
type Drop struct {
	Type   Type    `json:"type"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Chance float32 `json:"chance"`
}

// Block is the immutable behaviour record shared by every cell of one Type.
type Block struct {
	Type          Type    `json:"type"`
	Name          string  `json:"name"`
	Material      string  `json:"material"`
	Solid         bool    `json:"solid"`
	Opaque        bool    `json:"opaque"`
	LightEmission uint8   `json:"lightEmission"`
	LightOpacity  uint8   `json:"lightOpacity"`
	Hardness      float32 `json:"hardness"`
	Drops         []Drop  `json:"drops,omitempty"`
	// Tinted materials take the biome colour when meshed.
	Tinted bool `json:"tinted,omitempty"`
}

func (b *Block) String() string {
	return fmt.Sprintf("%s(%d)", b.Name, b.Type)
}

// validate checks the ranges a Block must satisfy before it is registered.
func (b *Block) validate() error {
	if b.Name == "" {
		return fmt.Errorf("block %d: empty name", b.Type)
	}
	if b.LightEmission > MaxLight {
		return fmt.Errorf("block %s: light emission %d out of range", b.Name, b.LightEmission)
	}
	if b.LightOpacity > MaxLight {
		return fmt.Errorf("block %s: light opacity %d out of range", b.Name, b.LightOpacity)
	}
	if b.Opaque && b.LightOpacity != MaxLight {
		return fmt.Errorf("block %s: opaque blocks must have opacity %d", b.Name, MaxLight)
	}
	for _, d := range b.Drops {
		if d.Min < 0 || d.Max < d.Min {
			return fmt.Errorf("block %s: drop %d has bad count range [%d,%d]", b.Name, d.Type, d.Min, d.Max)
		}
	}
	return nil
}

func self(t Type) []Drop {
	return []Drop{{Type: t, Min: 1, Max: 1, Chance: 1}}
}

// Defaults returns the built-in block table.
func Defaults() []Block {
	return []Block{
		{Type: Air, Name: "air", Material: "air"},
		{Type: Stone, Name: "stone", Material: "stone", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 1.5,
			Drops: self(Cobblestone)},
		{Type: Dirt, Name: "dirt", Material: "dirt", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 0.5, Drops: self(Dirt)},
		{Type: Grass, Name: "grass", Material: "grass", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 0.6,
			Drops: self(Dirt), Tinted: true},
		{Type: Sand, Name: "sand", Material: "sand", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 0.5, Drops: self(Sand)},
		{Type: Water, Name: "water", Material: "water", LightOpacity: 2, Hardness: 100},
		{Type: OakLog, Name: "oak_log", Material: "wood", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 2, Drops: self(OakLog)},
		{Type: OakLeaves, Name: "oak_leaves", Material: "leaves", Solid: true, LightOpacity: 1, Hardness: 0.2,
			Drops: []Drop{{Type: OakLeaves, Min: 0, Max: 1, Chance: 0.05}}, Tinted: true},
		{Type: CoalOre, Name: "coal_ore", Material: "ore", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 3,
			Drops: self(CoalOre)},
		{Type: IronOre, Name: "iron_ore", Material: "ore", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 3,
			Drops: self(IronOre)},
		{Type: GoldOre, Name: "gold_ore", Material: "ore", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 3,
			Drops: self(GoldOre)},
		{Type: DiamondOre, Name: "diamond_ore", Material: "ore", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 3,
			Drops: []Drop{{Type: DiamondOre, Min: 1, Max: 1, Chance: 1}}},
		{Type: Bedrock, Name: "bedrock", Material: "stone", Solid: true, Opaque: true, LightOpacity: 15, Hardness: -1},
		{Type: Gravel, Name: "gravel", Material: "gravel", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 0.6,
			Drops: self(Gravel)},
		{Type: Cobblestone, Name: "cobblestone", Material: "stone", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 2,
			Drops: self(Cobblestone)},
		{Type: OakPlanks, Name: "oak_planks", Material: "wood", Solid: true, Opaque: true, LightOpacity: 15, Hardness: 2,
			Drops: self(OakPlanks)},
		{Type: Glass, Name: "glass", Material: "glass", Solid: true, Hardness: 0.3},
		{Type: Torch, Name: "torch", Material: "torch", LightEmission: 14, Drops: self(Torch)},
		{Type: Glowstone, Name: "glowstone", Material: "glowstone", Solid: true, Opaque: true, LightOpacity: 15,
			LightEmission: 15, Hardness: 0.3, Drops: []Drop{{Type: Glowstone, Min: 2, Max: 4, Chance: 1}}},
		{Type: Lava, Name: "lava", Material: "lava", LightEmission: 15, LightOpacity: 15, Hardness: 100},
		{Type: DoorClosed, Name: "door_closed", Material: "door", Solid: true, Hardness: 3, Drops: self(DoorClosed)},
		{Type: DoorOpen, Name: "door_open", Material: "door", Hardness: 3, Drops: self(DoorClosed)},
	}
}
