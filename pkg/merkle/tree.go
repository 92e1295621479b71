package merkle

import "github.com/ethereum/go-ethereum/common"

// makeTree lays out leaves in array form. Leaves occupy the last len(leaves)
// slots in reverse order and every internal node hashes its two children.
func makeTree(leaves []common.Hash) []common.Hash {
	tree := make([]common.Hash, 2*len(leaves)-1)
	for i, leaf := range leaves {
		tree[len(tree)-1-i] = leaf
	}
	for i := len(tree) - 1 - len(leaves); i >= 0; i-- {
		tree[i] = hashPair(tree[leftChildIndex(i)], tree[rightChildIndex(i)])
	}
	return tree
}

func leftChildIndex(i int) int  { return 2*i + 1 }
func rightChildIndex(i int) int { return 2*i + 2 }

func parentIndex(i int) int {
	return (i - 1) / 2
}

func siblingIndex(i int) int {
	if i%2 == 1 {
		return i + 1
	}
	return i - 1
}

func isTreeNode(tree []common.Hash, i int) bool {
	return i >= 0 && i < len(tree)
}

func isInternalNode(tree []common.Hash, i int) bool {
	return isTreeNode(tree, rightChildIndex(i)) && isTreeNode(tree, i)
}

func isLeafNode(tree []common.Hash, i int) bool {
	return isTreeNode(tree, i) && !isInternalNode(tree, i)
}
