package sqlinline

// QApplyCreditEvent appends the event and moves the balance by its amount.
// Partial unique indexes make a repeated run charge, prompt charge or release
// insert nothing, in which case no row is returned.
const QApplyCreditEvent = `--sql f2e9b412-dd4d-4b85-b68e-177520e3f962
with ins as (
  insert into credit_events (id, user_id, amount, type, reason, job_id, run_id, created_at)
  values ($1::uuid, $2::uuid, $3::int, $4::text, $5::text, $6::uuid, $7::uuid, now())
  on conflict do nothing
  returning user_id, amount
)
update users u
set credits_balance = u.credits_balance + ins.amount,
    updated_at = now()
from ins
where u.id = ins.user_id
returning u.credits_balance;
`

const QSessionReload = `--sql 80cbeb72-e9f5-4fac-855e-7a617492a1ae
with cur as (
  select id, credits_balance
  from users
  where id = $2::uuid
  for update
),
ins as (
  insert into credit_events (id, user_id, amount, type, reason, created_at)
  select $1::uuid, cur.id, $3::int - cur.credits_balance, 'SESSION_RELOAD', $4::text, now()
  from cur
  where cur.credits_balance < $3::int
  returning user_id, amount
)
update users u
set credits_balance = u.credits_balance + ins.amount,
    updated_at = now()
from ins
where u.id = ins.user_id
returning u.credits_balance;
`

const QSelectBalance = `--sql 14e2a9a2-e893-4af1-a423-38a8e2ad381d
select credits_balance
from users
where id = $1::uuid;
`

const QListCreditEvents = `--sql 9e180664-b0b1-49c9-ac88-1b747b9c7f73
select id::text, user_id::text, amount, type, reason,
       coalesce(job_id::text, ''), coalesce(run_id::text, ''), created_at
from credit_events
where user_id = $1::uuid
order by created_at desc, id
limit $2::int;
`

const QSumCreditEvents = `--sql 5ccc4450-3092-4323-b058-7b65792a84d1
select coalesce(sum(amount), 0)::int
from credit_events
where user_id = $1::uuid;
`

const QSelectReserveEvent = `--sql 9613ef21-75a0-496e-be52-4fee85b54e20
select id::text, user_id::text, amount, type, reason,
       coalesce(job_id::text, ''), coalesce(run_id::text, ''), created_at
from credit_events
where job_id = $1::uuid
  and type = 'RESERVE';
`
