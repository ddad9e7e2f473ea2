package pack

// blockEntry is one block's contribution to a term's posting list: the block
// id and every 0-based position the term occurred at within that block, in
// token order.
type blockEntry struct {
	blockID   uint32
	positions []uint32
}

// termPostings accumulates the block entries for one term id, in the order
// those blocks were first found to contain the term.
type termPostings struct {
	termID uint32
	blocks []blockEntry
}

// buildIndex consumes pre-tokenized blocks and produces the lexicon plus the
// in-memory posting table, ready for stream serialization by encodePostings.
// Blocks are processed in order, so term ids are assigned in first-seen order
// and each term's block list is naturally ordered by ascending block id.
func buildIndex(blocks []Block, tokensPerBlock [][]Token) (*Lexicon, []*termPostings) {
	lex := newLexicon()
	var postingsList []*termPostings

	for bi, blk := range blocks {
		tokens := tokensPerBlock[bi]

		var order []uint32 // term ids in first-seen-within-block order
		positions := make(map[uint32][]uint32, len(tokens))

		for _, tok := range tokens {
			id, existed := lex.getOrAssign(tok.Term)
			if !existed {
				postingsList = append(postingsList, &termPostings{termID: id})
			}
			if _, seen := positions[id]; !seen {
				order = append(order, id)
			}
			positions[id] = append(positions[id], tok.Position)
		}

		for _, id := range order {
			tp := postingsList[id-1]
			tp.blocks = append(tp.blocks, blockEntry{
				blockID:   blk.BlockID,
				positions: positions[id],
			})
		}
	}

	return lex, postingsList
}

// encodePostings serializes the posting table into the flat u32 stream
// described by the grammar:
//
//	stream     := (term_entry)*
//	term_entry := term_id block_entry+ 0
//	block_entry := (block_id+1) (position+1)+ 0
//
// Both block ids and positions are stored with a +1 bias so that the
// terminator 0 is never ambiguous with a genuine id 0 or position 0.
func encodePostings(postingsList []*termPostings) []uint32 {
	stream := make([]uint32, 0, len(postingsList)*2)
	for _, tp := range postingsList {
		stream = append(stream, tp.termID)
		for _, be := range tp.blocks {
			stream = append(stream, be.blockID+1)
			for _, pos := range be.positions {
				stream = append(stream, pos+1)
			}
			stream = append(stream, 0) // end block_entry
		}
		stream = append(stream, 0) // end term_entry
	}
	return stream
}
