package contract

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// stakingABIJSON is the governance surface of the LP staking contract. The
// actions(id) getter returns the flat union struct; array-valued members of
// an action (pairs, weights, approvers) come from the companion getters.
const stakingABIJSON = `[
  {"type":"function","name":"rewardToken","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"hourlyRewardRate","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"REQUIRED_APPROVALS","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"actionCounter","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"actions","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[
    {"name":"actionType","type":"uint8"},
    {"name":"newHourlyRewardRate","type":"uint256"},
    {"name":"pairToAdd","type":"address"},
    {"name":"pairNameToAdd","type":"string"},
    {"name":"platformToAdd","type":"string"},
    {"name":"weightToAdd","type":"uint256"},
    {"name":"pairToRemove","type":"address"},
    {"name":"recipient","type":"address"},
    {"name":"withdrawAmount","type":"uint256"},
    {"name":"newSigner","type":"address"},
    {"name":"oldSigner","type":"address"},
    {"name":"proposedTime","type":"uint256"},
    {"name":"executed","type":"bool"},
    {"name":"rejected","type":"bool"},
    {"name":"approvals","type":"uint256"}
  ]},
  {"type":"function","name":"getActionPairs","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getActionWeights","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256[]"}]},
  {"type":"function","name":"getActionApprovers","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"isActionExpired","stateMutability":"view","inputs":[{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"hasRole","stateMutability":"view","inputs":[{"name":"role","type":"bytes32"},{"name":"account","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getSigners","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getPairs","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address[]"}]},
  {"type":"function","name":"getPairInfo","stateMutability":"view","inputs":[{"name":"lpToken","type":"address"}],"outputs":[
    {"name":"lpToken","type":"address"},
    {"name":"pairName","type":"string"},
    {"name":"platform","type":"string"},
    {"name":"weight","type":"uint256"},
    {"name":"isActive","type":"bool"}
  ]},
  {"type":"function","name":"proposeSetHourlyRewardRate","stateMutability":"nonpayable","inputs":[{"name":"newRate","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"proposeUpdatePairWeights","stateMutability":"nonpayable","inputs":[{"name":"lpTokens","type":"address[]"},{"name":"weights","type":"uint256[]"}],"outputs":[]},
  {"type":"function","name":"proposeAddPair","stateMutability":"nonpayable","inputs":[{"name":"lpToken","type":"address"},{"name":"pairName","type":"string"},{"name":"platform","type":"string"},{"name":"weight","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"proposeRemovePair","stateMutability":"nonpayable","inputs":[{"name":"lpToken","type":"address"}],"outputs":[]},
  {"type":"function","name":"proposeChangeSigner","stateMutability":"nonpayable","inputs":[{"name":"oldSigner","type":"address"},{"name":"newSigner","type":"address"}],"outputs":[]},
  {"type":"function","name":"proposeWithdrawRewards","stateMutability":"nonpayable","inputs":[{"name":"recipient","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"approveAction","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"rejectAction","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"executeAction","stateMutability":"nonpayable","inputs":[{"name":"id","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"cleanupExpiredActions","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

var stakingABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(stakingABIJSON))
})

// StakingABI returns the parsed governance ABI.
func StakingABI() (abi.ABI, error) {
	return stakingABI()
}
